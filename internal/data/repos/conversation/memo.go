package conversation

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type MemoRepo interface {
	GetBySession(dbc dbctx.Context, sessionID string) (*conversation.Memo, error)
	Upsert(dbc dbctx.Context, m *conversation.Memo) error
	Delete(dbc dbctx.Context, sessionID string) error
}

type memoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoRepo(db *gorm.DB, log *logger.Logger) MemoRepo {
	return &memoRepo{db: db, log: log.With("repo", "MemoRepo")}
}

func (r *memoRepo) GetBySession(dbc dbctx.Context, sessionID string) (*conversation.Memo, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out conversation.Memo
	err := txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *memoRepo) Upsert(dbc dbctx.Context, m *conversation.Memo) error {
	if m == nil || m.SessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(m).Error
}

func (r *memoRepo) Delete(dbc dbctx.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Delete(&conversation.Memo{}).Error
}
