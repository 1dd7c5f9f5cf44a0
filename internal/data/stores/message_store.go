package stores

import (
	"github.com/lumachat/luma-backend/internal/data/cache"
	convrepos "github.com/lumachat/luma-backend/internal/data/repos/conversation"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type MessageStore interface {
	// Append inserts durably (ErrConflict on a taken index), then mirrors
	// into the cache best-effort.
	Append(dbc dbctx.Context, m *conversation.Message) error
	ListBySession(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error)
	// NextIndex always counts persistence. The cache list can be a partial
	// view after TTL eviction, so its length is never used for index
	// assignment.
	NextIndex(dbc dbctx.Context, sessionID string) (int, error)
}

type messageStore struct {
	cache cache.MessageCache
	repo  convrepos.MessageRepo
	log   *logger.Logger
}

func NewMessageStore(c cache.MessageCache, repo convrepos.MessageRepo, log *logger.Logger) MessageStore {
	return &messageStore{
		cache: c,
		repo:  repo,
		log:   log.With("store", "MessageStore"),
	}
}

func (s *messageStore) Append(dbc dbctx.Context, m *conversation.Message) error {
	if err := s.repo.Append(dbc, m); err != nil {
		return err
	}
	if err := s.cache.Append(dbc.Ctx, m); err != nil {
		s.log.Warn("message cache append failed after durable insert",
			"session_id", m.SessionID, "index", m.Index, "error", err)
	}
	return nil
}

func (s *messageStore) ListBySession(dbc dbctx.Context, sessionID string) ([]*conversation.Message, error) {
	cached, err := s.cache.ListBySession(dbc.Ctx, sessionID)
	if err != nil {
		s.log.Warn("message cache list failed, falling back to persistence",
			"session_id", sessionID, "error", err)
	}
	if len(cached) > 0 {
		return cached, nil
	}

	persisted, err := s.repo.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if len(persisted) > 0 {
		// Replace, not append: the cache may hold a stale partial list.
		if err := s.cache.Replace(dbc.Ctx, sessionID, persisted); err != nil {
			s.log.Warn("message cache repopulation failed",
				"session_id", sessionID, "error", err)
		}
	}
	return persisted, nil
}

func (s *messageStore) NextIndex(dbc dbctx.Context, sessionID string) (int, error) {
	n, err := s.repo.CountBySession(dbc, sessionID)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
