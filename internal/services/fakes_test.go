package services

import (
	"context"
	"sort"
	"sync"

	"github.com/lumachat/luma-backend/internal/domain/conversation"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
)

type fakeSessionStore struct {
	mu        sync.Mutex
	items     map[string]*conversation.Session
	getErr    error
	upsertErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{items: map[string]*conversation.Session{}}
}

func (f *fakeSessionStore) GetByID(_ dbctx.Context, sessionID string) (*conversation.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.items[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) Upsert(_ dbctx.Context, s *conversation.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *s
	f.items[s.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) ListRecent(_ dbctx.Context, userID string, limit int) ([]*conversation.Session, error) {
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
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeMessageStore assigns conflicts from a scripted queue: each Append pops
// the next error (nil means success).
type fakeMessageStore struct {
	mu         sync.Mutex
	items      map[string][]*conversation.Message
	appendErrs []error
	listErr    error
	nextErr    error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{items: map[string][]*conversation.Message{}}
}

func (f *fakeMessageStore) Append(_ dbctx.Context, m *conversation.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.appendErrs) > 0 {
		err := f.appendErrs[0]
		f.appendErrs = f.appendErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *m
	f.items[m.SessionID] = append(f.items[m.SessionID], &cp)
	return nil
}

func (f *fakeMessageStore) ListBySession(_ dbctx.Context, sessionID string) ([]*conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*conversation.Message(nil), f.items[sessionID]...), nil
}

func (f *fakeMessageStore) NextIndex(_ dbctx.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return 0, f.nextErr
	}
	return len(f.items[sessionID]), nil
}

// fakeGenerator replays a scripted completion and records the history it was
// handed.
type fakeGenerator struct {
	mu          sync.Mutex
	completion  Completion
	err         error
	calls       int
	lastHistory []*conversation.Message
	deltas      []string
}

func (f *fakeGenerator) Generate(ctx context.Context, history []*conversation.Message, onDelta func(string)) (Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastHistory = append([]*conversation.Message(nil), history...)
	if err := ctx.Err(); err != nil {
		return Completion{}, err
	}
	if f.err != nil {
		return Completion{}, f.err
	}
	if onDelta != nil {
		for _, d := range f.deltas {
			onDelta(d)
		}
	}
	return f.completion, nil
}
