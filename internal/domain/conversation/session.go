package conversation

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Channel identifies the surface a session originated from.
type Channel string

const (
	ChannelWebChat Channel = "web-chat"
	ChannelVoice   Channel = "voice"
	ChannelAPI     Channel = "api"
)

// DefaultChannel is what unknown channel codes decode to. Forward
// compatibility: a newer writer may cache a channel this build does not
// know yet, and that must not poison reads.
const DefaultChannel = ChannelWebChat

func (c Channel) Valid() bool {
	switch c {
	case ChannelWebChat, ChannelVoice, ChannelAPI:
		return true
	}
	return false
}

// Session is one conversation thread, keyed by a caller-supplied opaque id.
// Snapshots are immutable: an update is a new value with the same key.
type Session struct {
	SessionID string  `gorm:"column:session_id;primaryKey" json:"session_id"`
	UserID    string  `gorm:"column:user_id;index" json:"user_id,omitempty"`
	TenantID  string  `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	Channel   Channel `gorm:"column:channel;type:text;not null" json:"channel"`
	Title     string  `gorm:"column:title" json:"title,omitempty"`
	Deleted   bool    `gorm:"column:deleted;not null;default:false" json:"deleted"`

	StartedAt     time.Time `gorm:"column:started_at;not null" json:"started_at"`
	LastMessageAt time.Time `gorm:"column:last_message_at;not null;index" json:"last_message_at"`

	Metadata datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "conversation_sessions" }

// Validate is the encode-side guard: a session that fails here must never
// reach the cache.
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("nil session")
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return fmt.Errorf("missing session_id")
	}
	if !s.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", s.Channel)
	}
	if s.StartedAt.IsZero() || s.LastMessageAt.IsZero() {
		return fmt.Errorf("missing timestamps")
	}
	if s.LastMessageAt.Before(s.StartedAt) {
		return fmt.Errorf("last_message_at precedes started_at")
	}
	return nil
}

// Touch returns a copy with last_message_at / updated_at advanced to now.
// The monotonic guard keeps last_message_at from moving backwards under
// clock skew.
func (s *Session) Touch(now time.Time) *Session {
	next := *s
	if now.After(next.LastMessageAt) {
		next.LastMessageAt = now
	}
	if now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	return &next
}
