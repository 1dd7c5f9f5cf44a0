package conversation

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Memo is a rolling summary of a session, maintained out-of-band from the
// message log. It is cache-first: reads prefer Redis, durability is
// reconciled asynchronously.
type Memo struct {
	SessionID  string            `gorm:"column:session_id;primaryKey" json:"session_id"`
	Summary    string            `gorm:"column:summary;type:text;not null;default:''" json:"summary"`
	Structured datatypes.JSONMap `gorm:"type:jsonb;column:structured" json:"structured,omitempty"`

	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Memo) TableName() string { return "conversation_memos" }

func (m *Memo) Validate() error {
	if m == nil {
		return fmt.Errorf("nil memo")
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("missing session_id")
	}
	return nil
}
