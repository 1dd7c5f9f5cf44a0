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

type SessionRepo interface {
	GetByID(dbc dbctx.Context, sessionID string) (*conversation.Session, error)
	// Upsert inserts or fully replaces the row keyed by session_id.
	Upsert(dbc dbctx.Context, s *conversation.Session) error
	// ListRecent returns non-deleted sessions ordered by last activity,
	// optionally filtered to one user.
	ListRecent(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, sessionID string) (*conversation.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out conversation.Session
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

func (r *sessionRepo) Upsert(dbc dbctx.Context, s *conversation.Session) error {
	if s == nil || s.SessionID == "" {
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
		Create(s).Error
}

func (r *sessionRepo) ListRecent(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&conversation.Session{}).
		Where("deleted = ?", false)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var out []*conversation.Session
	if err := q.
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
