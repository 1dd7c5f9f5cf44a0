package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type MemoCache interface {
	Get(ctx context.Context, sessionID string) (*conversation.Memo, error)
	Put(ctx context.Context, m *conversation.Memo) error
	Delete(ctx context.Context, sessionID string) error
}

// Memos are small and read mostly by prompt builders, so they stay JSON
// rather than joining the protowire schema.
type memoCache struct {
	rdb  *goredis.Client
	log  *logger.Logger
	opts Options
}

func NewMemoCache(rdb *goredis.Client, log *logger.Logger, opts Options) MemoCache {
	return &memoCache{
		rdb:  rdb,
		log:  log.With("cache", "MemoCache"),
		opts: opts.withDefaults(),
	}
}

func (c *memoCache) Get(ctx context.Context, sessionID string) (*conversation.Memo, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	raw, err := c.rdb.Get(ctx, memoKey(c.opts.KeyPrefix, sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get memo: %w", err)
	}
	var m conversation.Memo
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: memo: %v", apperrs.ErrDecode, err)
	}
	return &m, nil
}

func (c *memoCache) Put(ctx context.Context, m *conversation.Memo) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: memo: %v", apperrs.ErrEncode, err)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: memo: %v", apperrs.ErrEncode, err)
	}
	key := memoKey(c.opts.KeyPrefix, m.SessionID)
	if err := c.rdb.Set(ctx, key, raw, c.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set memo: %w", err)
	}
	return nil
}

func (c *memoCache) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	if err := c.rdb.Del(ctx, memoKey(c.opts.KeyPrefix, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del memo: %w", err)
	}
	return nil
}
