package cache

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumachat/luma-backend/internal/data/codec"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*conversation.Session, error)
	Put(ctx context.Context, s *conversation.Session) error
}

type sessionCache struct {
	rdb  *goredis.Client
	log  *logger.Logger
	opts Options
}

func NewSessionCache(rdb *goredis.Client, log *logger.Logger, opts Options) SessionCache {
	return &sessionCache{
		rdb:  rdb,
		log:  log.With("cache", "SessionCache"),
		opts: opts.withDefaults(),
	}
}

// Get returns (nil, nil) for both "never cached" and "expired"; the caller
// cannot and should not tell the difference.
func (c *sessionCache) Get(ctx context.Context, sessionID string) (*conversation.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	raw, err := c.rdb.Get(ctx, sessionKey(c.opts.KeyPrefix, sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return codec.DecodeSession(raw)
}

// Put writes the encoded snapshot and refreshes the TTL in one SET.
func (c *sessionCache) Put(ctx context.Context, s *conversation.Session) error {
	raw, err := codec.EncodeSession(s)
	if err != nil {
		return err
	}
	key := sessionKey(c.opts.KeyPrefix, s.SessionID)
	if err := c.rdb.Set(ctx, key, raw, c.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}
