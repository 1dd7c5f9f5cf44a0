package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
)

type fakeMemoCache struct {
	mu    sync.Mutex
	items map[string]*conversation.Memo
}

func newFakeMemoCache() *fakeMemoCache {
	return &fakeMemoCache{items: map[string]*conversation.Memo{}}
}

func (f *fakeMemoCache) Get(_ context.Context, sessionID string) (*conversation.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.items[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemoCache) Put(_ context.Context, m *conversation.Memo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.items[m.SessionID] = &cp
	return nil
}

func (f *fakeMemoCache) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, sessionID)
	return nil
}

type fakeMemoRepo struct {
	mu    sync.Mutex
	items map[string]*conversation.Memo
}

func newFakeMemoRepo() *fakeMemoRepo {
	return &fakeMemoRepo{items: map[string]*conversation.Memo{}}
}

func (f *fakeMemoRepo) GetBySession(_ dbctx.Context, sessionID string) (*conversation.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.items[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemoRepo) Upsert(_ dbctx.Context, m *conversation.Memo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.items[m.SessionID] = &cp
	return nil
}

func (f *fakeMemoRepo) Delete(_ dbctx.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, sessionID)
	return nil
}

func (f *fakeMemoRepo) get(sessionID string) *conversation.Memo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[sessionID]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestMemoDispatcherDrainsUpsert(t *testing.T) {
	c := newFakeMemoCache()
	repo := newFakeMemoRepo()
	d := NewMemoDispatcher(testLogger(t), c, repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Start(ctx)
		close(done)
	}()

	memo := &conversation.Memo{SessionID: "s1", Summary: "likes terse answers", UpdatedAt: time.Now().UTC()}
	if err := c.Put(ctx, memo); err != nil {
		t.Fatalf("cache put: %v", err)
	}
	d.EnqueueUpsert("s1")

	waitFor(t, func() bool {
		m := repo.get("s1")
		return m != nil && m.Summary == "likes terse answers"
	})

	cancel()
	<-done
}

func TestMemoDispatcherDrainsDelete(t *testing.T) {
	c := newFakeMemoCache()
	repo := newFakeMemoRepo()
	if err := repo.Upsert(dbctx.Context{Ctx: context.Background()}, &conversation.Memo{SessionID: "s1", Summary: "old"}); err != nil {
		t.Fatalf("seed repo: %v", err)
	}
	d := NewMemoDispatcher(testLogger(t), c, repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Start(ctx)
		close(done)
	}()

	d.EnqueueDelete("s1")
	waitFor(t, func() bool { return repo.get("s1") == nil })

	cancel()
	<-done
}

func TestMemoDispatcherSkipsEvictedUpsert(t *testing.T) {
	c := newFakeMemoCache()
	repo := newFakeMemoRepo()
	d := NewMemoDispatcher(testLogger(t), c, repo)

	// Nothing in the cache for s1: the drain should be a no-op, not an error.
	d.EnqueueUpsert("s1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_ = d.Start(ctx)

	if repo.get("s1") != nil {
		t.Fatalf("evicted memo still persisted")
	}
}
