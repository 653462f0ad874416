package rolestore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackedRole is one (member, role) pair. The composite primary key makes the pair unique.
type TrackedRole struct {
	MemberID  string `gorm:"primaryKey"`
	RoleID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (TrackedRole) TableName() string {
	return "tracked_roles"
}

// Store backed by a relational database (sqlite or postgres, via gorm).
type SQLRoleStore struct {
	db *gorm.DB
}

var _ RoleStore = (*SQLRoleStore)(nil)

// Migrates the schema if needed.
func NewSQLRoleStore(db *gorm.DB) (*SQLRoleStore, error) {
	if err := db.AutoMigrate(&TrackedRole{}); err != nil {
		return nil, fmt.Errorf("migrating tracked role table: %w", err)
	}
	return &SQLRoleStore{db: db}, nil
}

// Single INSERT ... ON CONFLICT DO NOTHING statement; the pair is either fully written or not at all.
func (s *SQLRoleStore) Record(ctx context.Context, memberID, roleID string) error {
	row := TrackedRole{
		MemberID:  memberID,
		RoleID:    roleID,
		CreatedAt: time.Now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("recording tracked role: %w", res.Error)
	}
	return nil
}

func (s *SQLRoleStore) Lookup(ctx context.Context, memberID string) ([]string, error) {
	out := []string{}
	err := s.db.WithContext(ctx).Model(&TrackedRole{}).Where("member_id = ?", memberID).Pluck("role_id", &out).Error
	if err != nil {
		return nil, fmt.Errorf("looking up tracked roles: %w", err)
	}
	return out, nil
}
