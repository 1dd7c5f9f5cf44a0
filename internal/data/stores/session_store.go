package stores

import (
	"context"

	"github.com/lumachat/luma-backend/internal/data/cache"
	convrepos "github.com/lumachat/luma-backend/internal/data/repos/conversation"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type SessionStore interface {
	// GetByID returns (nil, nil) when the session exists in neither layer.
	GetByID(dbc dbctx.Context, sessionID string) (*conversation.Session, error)
	// Upsert writes durably first; the cache write is best-effort.
	Upsert(dbc dbctx.Context, s *conversation.Session) error
	// ListRecent reads persistence directly; listings are not cached.
	ListRecent(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error)
}

type sessionStore struct {
	cache cache.SessionCache
	repo  convrepos.SessionRepo
	log   *logger.Logger
}

func NewSessionStore(c cache.SessionCache, repo convrepos.SessionRepo, log *logger.Logger) SessionStore {
	return &sessionStore{
		cache: c,
		repo:  repo,
		log:   log.With("store", "SessionStore"),
	}
}

func (s *sessionStore) GetByID(dbc dbctx.Context, sessionID string) (*conversation.Session, error) {
	return readThrough(dbc.Ctx, s.log,
		func(ctx context.Context) (*conversation.Session, error) {
			return s.cache.Get(ctx, sessionID)
		},
		func() (*conversation.Session, error) {
			return s.repo.GetByID(dbc, sessionID)
		},
		func(ctx context.Context, found *conversation.Session) error {
			return s.cache.Put(ctx, found)
		},
	)
}

func (s *sessionStore) Upsert(dbc dbctx.Context, sess *conversation.Session) error {
	// Persistence precedes cache: the cache must never hold a session that
	// was never durably committed.
	if err := s.repo.Upsert(dbc, sess); err != nil {
		return err
	}
	if err := s.cache.Put(dbc.Ctx, sess); err != nil {
		s.log.Warn("session cached write failed after durable upsert",
			"session_id", sess.SessionID, "error", err)
	}
	return nil
}

func (s *sessionStore) ListRecent(dbc dbctx.Context, userID string, limit int) ([]*conversation.Session, error) {
	return s.repo.ListRecent(dbc, userID, limit)
}
