package cache

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumachat/luma-backend/internal/data/codec"
	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

type MessageCache interface {
	// Append pushes one encoded message onto the session's list. The push
	// itself is not idempotent; exactly-once is owned by the turn service.
	Append(ctx context.Context, m *conversation.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*conversation.Message, error)
	// Replace swaps the whole list in one pipeline. Used for repopulation
	// after a miss so a half-evicted list can never be extended in place.
	Replace(ctx context.Context, sessionID string, msgs []*conversation.Message) error
}

type messageCache struct {
	rdb  *goredis.Client
	log  *logger.Logger
	opts Options
}

func NewMessageCache(rdb *goredis.Client, log *logger.Logger, opts Options) MessageCache {
	return &messageCache{
		rdb:  rdb,
		log:  log.With("cache", "MessageCache"),
		opts: opts.withDefaults(),
	}
}

func (c *messageCache) Append(ctx context.Context, m *conversation.Message) error {
	raw, err := codec.EncodeMessage(m)
	if err != nil {
		return err
	}
	key := messageKey(c.opts.KeyPrefix, m.SessionID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, c.opts.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append message: %w", err)
	}
	return nil
}

func (c *messageCache) ListBySession(ctx context.Context, sessionID string) ([]*conversation.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}
	key := messageKey(c.opts.KeyPrefix, sessionID)
	items, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list messages: %w", err)
	}
	out := make([]*conversation.Message, 0, len(items))
	for _, raw := range items {
		m, err := codec.DecodeMessage([]byte(raw))
		if err != nil {
			// One bad element poisons the whole list; surface it so the
			// reader falls back to persistence.
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *messageCache) Replace(ctx context.Context, sessionID string, msgs []*conversation.Message) error {
	if sessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	encoded := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		raw, err := codec.EncodeMessage(m)
		if err != nil {
			return err
		}
		encoded = append(encoded, raw)
	}
	key := messageKey(c.opts.KeyPrefix, sessionID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, raw := range encoded {
		pipe.RPush(ctx, key, raw)
	}
	if len(encoded) > 0 {
		pipe.Expire(ctx, key, c.opts.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis replace messages: %w", err)
	}
	return nil
}
