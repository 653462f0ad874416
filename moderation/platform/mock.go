package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// A fake community, for use in tests. Records every outbound call.
type MockPlatform struct {
	mu *sync.Mutex

	Members  map[string]*Member
	RoleSet  []Role
	Channels map[string]Channel
	// Message IDs per channel, oldest first
	History map[string][]string
	// Default role override bits, per channel
	Overrides map[string]map[Permission]OverrideValue

	// Member IDs the platform refuses to act on (hierarchy)
	Protected map[string]bool
	// Member IDs with private messages closed
	ClosedDMs map[string]bool
	// Injected failures, keyed by channel ID (sends) or role ID (role grants)
	SendErrors    map[string]error
	AddRoleErrors map[string]error

	Sent       []SentMessage
	Deleted    []Message
	Bans       []MemberAction
	Kicks      []MemberAction
	Timeouts   []TimeoutAction
	RoleGrants []RoleGrant
	DMs        []MemberAction
	Purges     []PurgeAction

	nextID int
}

type SentMessage struct {
	Message
	Text  string
	Embed *Embed
}

type MemberAction struct {
	MemberID string
	// reason, or message body for private messages
	Text string
}

type TimeoutAction struct {
	MemberID string
	Until    time.Time
	Reason   string
}

type RoleGrant struct {
	MemberID string
	RoleID   string
	Reason   string
}

type PurgeAction struct {
	ChannelID string
	Limit     int
	Deleted   int
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		mu:            &sync.Mutex{},
		Members:       make(map[string]*Member),
		Channels:      make(map[string]Channel),
		History:       make(map[string][]string),
		Overrides:     make(map[string]map[Permission]OverrideValue),
		Protected:     make(map[string]bool),
		ClosedDMs:     make(map[string]bool),
		SendErrors:    make(map[string]error),
		AddRoleErrors: make(map[string]error),
	}
}

func (p *MockPlatform) InsertMember(m Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Mention == "" {
		m.Mention = "<@" + m.ID + ">"
	}
	p.Members[m.ID] = &m
}

func (p *MockPlatform) InsertRole(r Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RoleSet = append(p.RoleSet, r)
}

func (p *MockPlatform) DeleteRole(roleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []Role{}
	for _, r := range p.RoleSet {
		if r.ID != roleID {
			out = append(out, r)
		}
	}
	p.RoleSet = out
}

func (p *MockPlatform) InsertChannel(c Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.Mention == "" {
		c.Mention = "<#" + c.ID + ">"
	}
	p.Channels[c.ID] = c
}

// Appends n messages to a channel's history, returning the ID of the last one.
func (p *MockPlatform) Seed(channelID string, n int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	last := ""
	for i := 0; i < n; i++ {
		last = p.newID()
		p.History[channelID] = append(p.History[channelID], last)
	}
	return last
}

// Returns a copy of the member as currently known.
func (p *MockPlatform) Member(memberID string) (Member, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.Members[memberID]
	if !ok {
		return Member{}, false
	}
	out := *m
	out.Roles = append([]string{}, m.Roles...)
	return out, true
}

// Sent messages (text or embed) to the given channel, in order.
func (p *MockPlatform) SentTo(channelID string) []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []SentMessage{}
	for _, s := range p.Sent {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

func (p *MockPlatform) WasDeleted(messageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.Deleted {
		if m.ID == messageID {
			return true
		}
	}
	return false
}

func (p *MockPlatform) newID() string {
	p.nextID++
	return fmt.Sprintf("msg%04d", p.nextID)
}

func (p *MockPlatform) send(channelID, text string, embed *Embed) (*Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.SendErrors[channelID]; err != nil {
		return nil, err
	}
	if _, ok := p.Channels[channelID]; !ok {
		return nil, ErrNotFound
	}
	msg := Message{ID: p.newID(), ChannelID: channelID}
	p.History[channelID] = append(p.History[channelID], msg.ID)
	p.Sent = append(p.Sent, SentMessage{Message: msg, Text: text, Embed: embed})
	return &msg, nil
}

func (p *MockPlatform) SendMessage(ctx context.Context, channelID, text string) (*Message, error) {
	return p.send(channelID, text, nil)
}

func (p *MockPlatform) SendEmbed(ctx context.Context, channelID string, embed Embed) (*Message, error) {
	return p.send(channelID, "", &embed)
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	hist := p.History[channelID]
	for i, id := range hist {
		if id == messageID {
			p.History[channelID] = append(hist[:i:i], hist[i+1:]...)
			p.Deleted = append(p.Deleted, Message{ID: messageID, ChannelID: channelID})
			return nil
		}
	}
	return ErrNotFound
}

func (p *MockPlatform) memberAction(memberID string) error {
	if _, ok := p.Members[memberID]; !ok {
		return ErrNotFound
	}
	if p.Protected[memberID] {
		return ErrForbidden
	}
	return nil
}

func (p *MockPlatform) Ban(ctx context.Context, memberID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.memberAction(memberID); err != nil {
		return err
	}
	p.Bans = append(p.Bans, MemberAction{MemberID: memberID, Text: reason})
	delete(p.Members, memberID)
	return nil
}

func (p *MockPlatform) Kick(ctx context.Context, memberID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.memberAction(memberID); err != nil {
		return err
	}
	p.Kicks = append(p.Kicks, MemberAction{MemberID: memberID, Text: reason})
	delete(p.Members, memberID)
	return nil
}

func (p *MockPlatform) Timeout(ctx context.Context, memberID string, until time.Time, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.memberAction(memberID); err != nil {
		return err
	}
	p.Timeouts = append(p.Timeouts, TimeoutAction{MemberID: memberID, Until: until, Reason: reason})
	return nil
}

func (p *MockPlatform) AddRole(ctx context.Context, memberID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.AddRoleErrors[roleID]; err != nil {
		return err
	}
	m, ok := p.Members[memberID]
	if !ok {
		return ErrNotFound
	}
	if !m.HasRole(roleID) {
		m.Roles = append(m.Roles, roleID)
	}
	p.RoleGrants = append(p.RoleGrants, RoleGrant{MemberID: memberID, RoleID: roleID, Reason: reason})
	return nil
}

func (p *MockPlatform) Roles(ctx context.Context) ([]Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Role{}, p.RoleSet...), nil
}

func (p *MockPlatform) Channel(ctx context.Context, channelID string) (*Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.Channels[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (p *MockPlatform) ResolveMember(ctx context.Context, query string) (*Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.Members[query]; ok {
		out := *m
		return &out, nil
	}
	for _, m := range p.Members {
		if strings.EqualFold(m.Name, query) {
			out := *m
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (p *MockPlatform) SetPermissionOverride(ctx context.Context, channelID string, perm Permission, value OverrideValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Channels[channelID]; !ok {
		return ErrNotFound
	}
	ow, ok := p.Overrides[channelID]
	if !ok {
		ow = make(map[Permission]OverrideValue)
		p.Overrides[channelID] = ow
	}
	if value == OverrideInherit {
		delete(ow, perm)
	} else {
		ow[perm] = value
	}
	return nil
}

func (p *MockPlatform) PurgeMessages(ctx context.Context, channelID string, limit int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hist := p.History[channelID]
	n := limit
	if n > len(hist) {
		n = len(hist)
	}
	for _, id := range hist[len(hist)-n:] {
		p.Deleted = append(p.Deleted, Message{ID: id, ChannelID: channelID})
	}
	p.History[channelID] = hist[:len(hist)-n]
	p.Purges = append(p.Purges, PurgeAction{ChannelID: channelID, Limit: limit, Deleted: n})
	return n, nil
}

func (p *MockPlatform) SendPrivateMessage(ctx context.Context, memberID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Members[memberID]; !ok {
		return ErrNotFound
	}
	if p.ClosedDMs[memberID] {
		return ErrCannotMessage
	}
	p.DMs = append(p.DMs, MemberAction{MemberID: memberID, Text: text})
	return nil
}
