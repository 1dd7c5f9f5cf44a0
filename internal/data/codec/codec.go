// Package codec converts conversation entities to and from the compact
// binary form stored in Redis. The encoding is plain proto wire format with
// fixed field numbers, so cached bytes survive process restarts and additive
// schema changes. Unknown fields are skipped on decode.
//
// Session wire schema:
//
//	1 session_id string    7 started_at      int64 epoch ms
//	2 user_id    string    8 last_message_at int64 epoch ms
//	3 tenant_id  string    9 created_at      int64 epoch ms
//	4 channel    varint   10 updated_at      int64 epoch ms
//	5 title      string   11 metadata        repeated entry{1 key, 2 value}
//	6 deleted    varint
//
// Message wire schema:
//
//	1 id             string   6 ui_message_id  string
//	2 session_id     string   7 model_snapshot string
//	3 role           varint   8 created_at     int64 epoch ms
//	4 content        string   9 updated_at     int64 epoch ms
//	5 index          varint  10 metadata       repeated entry{1 key, 2 value}
package codec

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
)

const (
	sessionFieldID        = 1
	sessionFieldUserID    = 2
	sessionFieldTenantID  = 3
	sessionFieldChannel   = 4
	sessionFieldTitle     = 5
	sessionFieldDeleted   = 6
	sessionFieldStartedAt = 7
	sessionFieldLastMsgAt = 8
	sessionFieldCreatedAt = 9
	sessionFieldUpdatedAt = 10
	sessionFieldMetadata  = 11

	messageFieldID        = 1
	messageFieldSessionID = 2
	messageFieldRole      = 3
	messageFieldContent   = 4
	messageFieldIndex     = 5
	messageFieldUIMsgID   = 6
	messageFieldSnapshot  = 7
	messageFieldCreatedAt = 8
	messageFieldUpdatedAt = 9
	messageFieldMetadata  = 10
)

var channelToWire = map[conversation.Channel]uint64{
	conversation.ChannelWebChat: 1,
	conversation.ChannelVoice:   2,
	conversation.ChannelAPI:     3,
}

var wireToChannel = map[uint64]conversation.Channel{
	1: conversation.ChannelWebChat,
	2: conversation.ChannelVoice,
	3: conversation.ChannelAPI,
}

var roleToWire = map[conversation.Role]uint64{
	conversation.RoleSystem:    1,
	conversation.RoleUser:      2,
	conversation.RoleAssistant: 3,
	conversation.RoleTool:      4,
}

var wireToRole = map[uint64]conversation.Role{
	1: conversation.RoleSystem,
	2: conversation.RoleUser,
	3: conversation.RoleAssistant,
	4: conversation.RoleTool,
}

// EncodeSession validates and encodes a session. Validation failure wraps
// ErrEncode so a malformed value can never reach the cache.
func EncodeSession(s *conversation.Session) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: session: %v", apperrs.ErrEncode, err)
	}
	var b []byte
	b = appendStringField(b, sessionFieldID, s.SessionID)
	b = appendStringField(b, sessionFieldUserID, s.UserID)
	b = appendStringField(b, sessionFieldTenantID, s.TenantID)
	b = appendVarintField(b, sessionFieldChannel, channelToWire[s.Channel])
	b = appendStringField(b, sessionFieldTitle, s.Title)
	if s.Deleted {
		b = appendVarintField(b, sessionFieldDeleted, 1)
	}
	b = appendTimeField(b, sessionFieldStartedAt, s.StartedAt)
	b = appendTimeField(b, sessionFieldLastMsgAt, s.LastMessageAt)
	b = appendTimeField(b, sessionFieldCreatedAt, s.CreatedAt)
	b = appendTimeField(b, sessionFieldUpdatedAt, s.UpdatedAt)
	b = appendMetadataField(b, sessionFieldMetadata, s.Metadata)
	return b, nil
}

// DecodeSession decodes cached session bytes. Unknown channel codes fall
// back to the default channel rather than failing; truly malformed bytes
// wrap ErrDecode.
func DecodeSession(data []byte) (*conversation.Session, error) {
	s := &conversation.Session{Channel: conversation.DefaultChannel}
	meta := map[string]any{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case sessionFieldID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			s.SessionID = v
		case sessionFieldUserID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			s.UserID = v
		case sessionFieldTenantID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			s.TenantID = v
		case sessionFieldChannel:
			v, err := fieldVarint(typ, payload)
			if err != nil {
				return err
			}
			if ch, ok := wireToChannel[v]; ok {
				s.Channel = ch
			} else {
				s.Channel = conversation.DefaultChannel
			}
		case sessionFieldTitle:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			s.Title = v
		case sessionFieldDeleted:
			v, err := fieldVarint(typ, payload)
			if err != nil {
				return err
			}
			s.Deleted = v != 0
		case sessionFieldStartedAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			s.StartedAt = t
		case sessionFieldLastMsgAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			s.LastMessageAt = t
		case sessionFieldCreatedAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			s.CreatedAt = t
		case sessionFieldUpdatedAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			s.UpdatedAt = t
		case sessionFieldMetadata:
			if err := consumeMetadataEntry(typ, payload, meta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: session: %v", apperrs.ErrDecode, err)
	}
	if s.SessionID == "" {
		return nil, fmt.Errorf("%w: session: missing session_id", apperrs.ErrDecode)
	}
	if len(meta) > 0 {
		s.Metadata = meta
	}
	return s, nil
}

// EncodeMessage validates and encodes a message.
func EncodeMessage(m *conversation.Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: message: %v", apperrs.ErrEncode, err)
	}
	var b []byte
	b = appendStringField(b, messageFieldID, m.ID)
	b = appendStringField(b, messageFieldSessionID, m.SessionID)
	b = appendVarintField(b, messageFieldRole, roleToWire[m.Role])
	b = appendStringField(b, messageFieldContent, m.Content)
	b = appendVarintField(b, messageFieldIndex, uint64(m.Index))
	b = appendStringField(b, messageFieldUIMsgID, m.UIMessageID)
	b = appendStringField(b, messageFieldSnapshot, m.ModelSnapshot)
	b = appendTimeField(b, messageFieldCreatedAt, m.CreatedAt)
	b = appendTimeField(b, messageFieldUpdatedAt, m.UpdatedAt)
	b = appendMetadataField(b, messageFieldMetadata, m.Metadata)
	return b, nil
}

// DecodeMessage decodes cached message bytes. Unknown role codes fall back
// to the default role.
func DecodeMessage(data []byte) (*conversation.Message, error) {
	m := &conversation.Message{Role: conversation.DefaultRole}
	meta := map[string]any{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, payload []byte) error {
		switch num {
		case messageFieldID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			m.ID = v
		case messageFieldSessionID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			m.SessionID = v
		case messageFieldRole:
			v, err := fieldVarint(typ, payload)
			if err != nil {
				return err
			}
			if r, ok := wireToRole[v]; ok {
				m.Role = r
			} else {
				m.Role = conversation.DefaultRole
			}
		case messageFieldContent:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			m.Content = v
		case messageFieldIndex:
			v, err := fieldVarint(typ, payload)
			if err != nil {
				return err
			}
			m.Index = int(v)
		case messageFieldUIMsgID:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			m.UIMessageID = v
		case messageFieldSnapshot:
			v, err := fieldString(typ, payload)
			if err != nil {
				return err
			}
			m.ModelSnapshot = v
		case messageFieldCreatedAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			m.CreatedAt = t
		case messageFieldUpdatedAt:
			t, err := fieldTime(typ, payload)
			if err != nil {
				return err
			}
			m.UpdatedAt = t
		case messageFieldMetadata:
			if err := consumeMetadataEntry(typ, payload, meta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: message: %v", apperrs.ErrDecode, err)
	}
	if m.ID == "" || m.SessionID == "" {
		return nil, fmt.Errorf("%w: message: missing identity fields", apperrs.ErrDecode)
	}
	if len(meta) > 0 {
		m.Metadata = meta
	}
	return m, nil
}

func appendTimeField(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return appendVarintField(b, num, uint64(t.UnixMilli()))
}

func fieldTime(typ protowire.Type, payload []byte) (time.Time, error) {
	v, err := fieldVarint(typ, payload)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(v)).UTC(), nil
}
