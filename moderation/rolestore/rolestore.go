package rolestore

import (
	"context"
)

// RoleStore persists which tracked roles a member held when they left the community.
//
// Records are (member, role) pairs. Recording an existing pair is a no-op. There is no delete: history accumulates, and re-applying a role on rejoin is idempotent.
type RoleStore interface {
	// Inserts the pair if absent. Safe to call repeatedly.
	Record(ctx context.Context, memberID, roleID string) error
	// Returns every role ID ever recorded for the member, in no particular order. Never nil.
	Lookup(ctx context.Context, memberID string) ([]string, error)
}
