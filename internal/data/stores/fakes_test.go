package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	apperrs "github.com/lumachat/luma-backend/internal/pkg/errors"
)

// In-memory doubles for both layers with injectable failures. They
// implement the same contracts the Redis and GORM implementations do, so
// the orchestrator under test cannot tell the difference.

type fakeSessionCache struct {
	mu       sync.Mutex
	items    map[string]*conversation.Session
	getErr   error
	putErr   error
	getCalls int
	putCalls int
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{items: map[string]*conversation.Session{}}
}

func (f *fakeSessionCache) Get(_ context.Context, id string) (*conversation.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.items[id], nil
}

func (f *fakeSessionCache) Put(_ context.Context, s *conversation.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	cp := *s
	f.items[s.SessionID] = &cp
	return nil
}

type fakeSessionRepo struct {
	mu        sync.Mutex
	items     map[string]*conversation.Session
	getErr    error
	upsertErr error
	getCalls  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{items: map[string]*conversation.Session{}}
}

func (f *fakeSessionRepo) GetByID(_ dbctx.Context, id string) (*conversation.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.items[id], nil
}

func (f *fakeSessionRepo) Upsert(_ dbctx.Context, s *conversation.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *s
	f.items[s.SessionID] = &cp
	return nil
}

func (f *fakeSessionRepo) ListRecent(_ dbctx.Context, userID string, limit int) ([]*conversation.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*conversation.Session
	for _, s := range f.items {
		if s.Deleted {
			continue
		}
		if userID != "" && s.UserID != userID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeMessageCache struct {
	mu         sync.Mutex
	lists      map[string][]*conversation.Message
	appendErr  error
	listErr    error
	replaceErr error
	listCalls  int
}

func newFakeMessageCache() *fakeMessageCache {
	return &fakeMessageCache{lists: map[string][]*conversation.Message{}}
}

func (f *fakeMessageCache) Append(_ context.Context, m *conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	cp := *m
	f.lists[m.SessionID] = append(f.lists[m.SessionID], &cp)
	return nil
}

func (f *fakeMessageCache) ListBySession(_ context.Context, sessionID string) ([]*conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*conversation.Message(nil), f.lists[sessionID]...), nil
}

func (f *fakeMessageCache) Replace(_ context.Context, sessionID string, msgs []*conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	cp := make([]*conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		mm := *m
		cp = append(cp, &mm)
	}
	f.lists[sessionID] = cp
	return nil
}

func (f *fakeMessageCache) len(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[sessionID])
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	lists     map[string][]*conversation.Message
	appendErr error
	listErr   error
	countErr  error
	listCalls int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{lists: map[string][]*conversation.Message{}}
}

func (f *fakeMessageRepo) Append(_ dbctx.Context, m *conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	for _, existing := range f.lists[m.SessionID] {
		if existing.Index == m.Index {
			return fmt.Errorf("%w: message index %d already taken for session", apperrs.ErrConflict, m.Index)
		}
	}
	cp := *m
	f.lists[m.SessionID] = append(f.lists[m.SessionID], &cp)
	sort.Slice(f.lists[m.SessionID], func(i, j int) bool {
		return f.lists[m.SessionID][i].Index < f.lists[m.SessionID][j].Index
	})
	return nil
}

func (f *fakeMessageRepo) ListBySession(_ dbctx.Context, sessionID string) ([]*conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*conversation.Message(nil), f.lists[sessionID]...), nil
}

func (f *fakeMessageRepo) CountBySession(_ dbctx.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.lists[sessionID])), nil
}

type fakeMemoCache struct {
	mu     sync.Mutex
	items  map[string]*conversation.Memo
	getErr error
	putErr error
}

func newFakeMemoCache() *fakeMemoCache {
	return &fakeMemoCache{items: map[string]*conversation.Memo{}}
}

func (f *fakeMemoCache) Get(_ context.Context, id string) (*conversation.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.items[id], nil
}

func (f *fakeMemoCache) Put(_ context.Context, m *conversation.Memo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	cp := *m
	f.items[m.SessionID] = &cp
	return nil
}

func (f *fakeMemoCache) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeMemoRepo struct {
	mu    sync.Mutex
	items map[string]*conversation.Memo
}

func newFakeMemoRepo() *fakeMemoRepo {
	return &fakeMemoRepo{items: map[string]*conversation.Memo{}}
}

func (f *fakeMemoRepo) GetBySession(_ dbctx.Context, id string) (*conversation.Memo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id], nil
}

func (f *fakeMemoRepo) Upsert(_ dbctx.Context, m *conversation.Memo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.items[m.SessionID] = &cp
	return nil
}

func (f *fakeMemoRepo) Delete(_ dbctx.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	upserts []string
	deletes []string
}

func (d *recordingDispatcher) EnqueueUpsert(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upserts = append(d.upserts, id)
}

func (d *recordingDispatcher) EnqueueDelete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletes = append(d.deletes, id)
}
