package stores

import (
	"context"

	"github.com/lumachat/luma-backend/internal/data/cache"
	convrepos "github.com/lumachat/luma-backend/internal/data/repos/conversation"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

// MemoDispatcher hands memo durability work to a background worker. The
// memo path is inverted relative to messages: the cache is written
// synchronously and Postgres catches up asynchronously, because a stale
// memo is acceptable while a slow chat turn is not.
type MemoDispatcher interface {
	EnqueueUpsert(sessionID string)
	EnqueueDelete(sessionID string)
}

type MemoStore interface {
	Get(dbc dbctx.Context, sessionID string) (*conversation.Memo, error)
	Upsert(dbc dbctx.Context, m *conversation.Memo) error
	Delete(dbc dbctx.Context, sessionID string) error
}

type memoStore struct {
	cache      cache.MemoCache
	repo       convrepos.MemoRepo
	dispatcher MemoDispatcher
	log        *logger.Logger
}

func NewMemoStore(c cache.MemoCache, repo convrepos.MemoRepo, dispatcher MemoDispatcher, log *logger.Logger) MemoStore {
	return &memoStore{
		cache:      c,
		repo:       repo,
		dispatcher: dispatcher,
		log:        log.With("store", "MemoStore"),
	}
}

func (s *memoStore) Get(dbc dbctx.Context, sessionID string) (*conversation.Memo, error) {
	return readThrough(dbc.Ctx, s.log,
		func(ctx context.Context) (*conversation.Memo, error) {
			return s.cache.Get(ctx, sessionID)
		},
		func() (*conversation.Memo, error) {
			return s.repo.GetBySession(dbc, sessionID)
		},
		func(ctx context.Context, found *conversation.Memo) error {
			return s.cache.Put(ctx, found)
		},
	)
}

func (s *memoStore) Upsert(dbc dbctx.Context, m *conversation.Memo) error {
	if err := s.cache.Put(dbc.Ctx, m); err != nil {
		return err
	}
	if s.dispatcher != nil {
		s.dispatcher.EnqueueUpsert(m.SessionID)
	}
	return nil
}

func (s *memoStore) Delete(dbc dbctx.Context, sessionID string) error {
	if err := s.cache.Delete(dbc.Ctx, sessionID); err != nil {
		return err
	}
	if s.dispatcher != nil {
		s.dispatcher.EnqueueDelete(sessionID)
	}
	return nil
}
