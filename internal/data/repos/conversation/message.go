package conversation

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type MessageRepo interface {
	// Append is insert-only. A duplicate (session_id, msg_index) returns
	// ErrConflict; this unique constraint is the durable backstop against
	// two writers racing for the same slot.
	Append(dbc dbctx.Context, m *conversation.Message) error
	ListBySession(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error)
	CountBySession(dbc dbctx.Context, sessionID string) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, m *conversation.Message) error {
	if m == nil {
		return fmt.Errorf("nil message")
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrs.ErrInvalidArgument, err)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	err := txx.WithContext(dbc.Ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: message index %d already taken for session", apperrs.ErrConflict, m.Index)
	}
	return err
}

func (r *messageRepo) ListBySession(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*conversation.Message
	if err := txx.WithContext(dbc.Ctx).
		Model(&conversation.Message{}).
		Where("session_id = ?", sessionID).
		Order("msg_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) CountBySession(dbc dbctx.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&conversation.Message{}).
		Where("session_id = ?", sessionID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
