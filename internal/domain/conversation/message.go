package conversation

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role is the author of one message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// DefaultRole is what unknown role codes decode to.
const DefaultRole = RoleUser

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one turn's content within a session. Index defines the total
// order; per session indices are a contiguous run starting at 0. Messages
// are never mutated after append.
type Message struct {
	ID        string `gorm:"column:id;primaryKey" json:"id"`
	SessionID string `gorm:"column:session_id;not null;index:idx_conversation_messages_session_index,unique,priority:1" json:"session_id"`
	Index     int    `gorm:"column:msg_index;not null;check:chk_conversation_messages_index,msg_index >= 0;index:idx_conversation_messages_session_index,unique,priority:2" json:"index"`

	Role    Role   `gorm:"column:role;type:text;not null" json:"role"`
	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	UIMessageID   string            `gorm:"column:ui_message_id" json:"ui_message_id,omitempty"`
	ModelSnapshot string            `gorm:"column:model_snapshot;type:text" json:"model_snapshot,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Message) TableName() string { return "conversation_messages" }

// MessageID derives the durable message key from its position. Deterministic
// ids make a re-append of the same logical message collide instead of
// duplicating it.
func MessageID(sessionID string, index int) string {
	return fmt.Sprintf("msg_%s_%d", sessionID, index)
}

func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("nil message")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("missing session_id")
	}
	if m.Index < 0 {
		return fmt.Errorf("negative index %d", m.Index)
	}
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}
