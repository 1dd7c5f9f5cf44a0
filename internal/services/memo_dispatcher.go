package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumachat/luma-backend/internal/data/cache"
	convrepos "github.com/lumachat/luma-backend/internal/data/repos/conversation"
	"github.com/lumachat/luma-backend/internal/data/stores"
	"github.com/lumachat/luma-backend/internal/pkg/dbctx"
	"github.com/lumachat/luma-backend/internal/platform/logger"
)

const memoQueueDepth = 256

type memoOp string

const (
	memoOpUpsert memoOp = "upsert"
	memoOpDelete memoOp = "delete"
)

type memoJob struct {
	op        memoOp
	sessionID string
}

// MemoDispatcher drains memo durability work onto Postgres in the
// background. Upserts re-read the cached memo at drain time, so rapid
// successive writes to the same session collapse into whatever state the
// cache holds when the job runs.
type MemoDispatcher struct {
	log   *logger.Logger
	cache cache.MemoCache
	repo  convrepos.MemoRepo
	queue chan memoJob
}

var _ stores.MemoDispatcher = (*MemoDispatcher)(nil)

func NewMemoDispatcher(log *logger.Logger, c cache.MemoCache, repo convrepos.MemoRepo) *MemoDispatcher {
	return &MemoDispatcher{
		log:   log.With("service", "MemoDispatcher"),
		cache: c,
		repo:  repo,
		queue: make(chan memoJob, memoQueueDepth),
	}
}

// Start runs the drain loop until ctx is cancelled. Callers typically hand it
// to an errgroup alongside the HTTP server.
func (d *MemoDispatcher) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				d.drainRemaining()
				return ctx.Err()
			case job := <-d.queue:
				d.process(ctx, job)
			}
		}
	})
	return g.Wait()
}

func (d *MemoDispatcher) EnqueueUpsert(sessionID string) {
	d.enqueue(memoJob{op: memoOpUpsert, sessionID: sessionID})
}

func (d *MemoDispatcher) EnqueueDelete(sessionID string) {
	d.enqueue(memoJob{op: memoOpDelete, sessionID: sessionID})
}

func (d *MemoDispatcher) enqueue(job memoJob) {
	select {
	case d.queue <- job:
	default:
		// Dropping is safe: the cache already holds the latest state and a
		// later enqueue for the same session re-syncs it.
		d.log.Warn("memo queue full, dropping job",
			"op", string(job.op),
			"session_id", job.sessionID,
		)
	}
}

func (d *MemoDispatcher) process(ctx context.Context, job memoJob) {
	dbc := dbctx.Context{Ctx: ctx}
	switch job.op {
	case memoOpUpsert:
		memo, err := d.cache.Get(ctx, job.sessionID)
		if err != nil {
			d.log.Error("memo drain read failed", "session_id", job.sessionID, "error", err.Error())
			return
		}
		if memo == nil {
			// Evicted or deleted before the drain caught up; nothing to persist.
			return
		}
		if err := d.repo.Upsert(dbc, memo); err != nil {
			d.log.Error("memo drain upsert failed", "session_id", job.sessionID, "error", err.Error())
			return
		}
	case memoOpDelete:
		if err := d.repo.Delete(dbc, job.sessionID); err != nil {
			d.log.Error("memo drain delete failed", "session_id", job.sessionID, "error", err.Error())
			return
		}
	}
	d.log.Debug("memo drained", "op", string(job.op), "session_id", job.sessionID)
}

// drainRemaining makes a best-effort pass over queued jobs during shutdown
// with a short independent deadline.
func (d *MemoDispatcher) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case job := <-d.queue:
			d.process(ctx, job)
		default:
			return
		}
	}
}
