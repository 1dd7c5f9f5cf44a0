package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run cache integration tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func testOptions(t *testing.T) Options {
	// Unique prefix per test run keeps parallel CI runs from colliding.
	return Options{KeyPrefix: fmt.Sprintf("luma:test:%d:", time.Now().UnixNano()), TTL: time.Minute}
}

func TestSessionCacheRoundTrip(t *testing.T) {
	rdb := testClient(t)
	c := NewSessionCache(rdb, testLogger(t), testOptions(t))
	ctx := context.Background()

	if got, err := c.Get(ctx, "absent"); err != nil || got != nil {
		t.Fatalf("expected clean miss, got %v, %v", got, err)
	}

	now := time.Now().Truncate(time.Millisecond).UTC()
	s := &conversation.Session{
		SessionID:     "s-cache",
		Channel:       conversation.ChannelWebChat,
		StartedAt:     now,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, "s-cache")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.SessionID != "s-cache" || !got.StartedAt.Equal(now) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMessageCacheAppendListReplace(t *testing.T) {
	rdb := testClient(t)
	c := NewMessageCache(rdb, testLogger(t), testOptions(t))
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()

	mk := func(i int, content string) *conversation.Message {
		return &conversation.Message{
			ID:        conversation.MessageID("s-list", i),
			SessionID: "s-list",
			Index:     i,
			Role:      conversation.RoleUser,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	for i := 0; i < 3; i++ {
		if err := c.Append(ctx, mk(i, fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	got, err := c.ListBySession(ctx, "s-list")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, m := range got {
		if m.Index != i {
			t.Fatalf("stored order broken at %d: %+v", i, m)
		}
	}

	if err := c.Replace(ctx, "s-list", []*conversation.Message{mk(0, "only")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err = c.ListBySession(ctx, "s-list")
	if err != nil {
		t.Fatalf("ListBySession after replace: %v", err)
	}
	if len(got) != 1 || got[0].Content != "only" {
		t.Fatalf("Replace did not swap the list: %+v", got)
	}
}

func TestMemoCacheRoundTrip(t *testing.T) {
	rdb := testClient(t)
	c := NewMemoCache(rdb, testLogger(t), testOptions(t))
	ctx := context.Background()

	m := &conversation.Memo{
		SessionID: "s-memo",
		Summary:   "user prefers short answers",
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.Put(ctx, m); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, "s-memo")
	if err != nil || got == nil || got.Summary != m.Summary {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if err := c.Delete(ctx, "s-memo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := c.Get(ctx, "s-memo"); err != nil || got != nil {
		t.Fatalf("expected miss after delete, got %+v, %v", got, err)
	}
}
