// Package stores is the cache-aside layer: every read checks Redis first
// and falls back to Postgres, every write lands in Postgres before Redis
// sees it. Persistence is authoritative; cache failures degrade reads and
// never fail writes. This is the only package that reasons about
// consistency between the two backends.
package stores

import (
	"context"

	"github.com/lumachat/luma-backend/internal/platform/logger"
)

// readThrough is the shared scalar read path: cache hit wins, a miss (or a
// cache error, which is deliberately indistinguishable from a miss here)
// falls back to persistence, and a persistence hit repopulates the cache
// best-effort. Used for sessions and memos.
func readThrough[T any](
	ctx context.Context,
	log *logger.Logger,
	fromCache func(context.Context) (*T, error),
	fromPersistence func() (*T, error),
	repopulate func(context.Context, *T) error,
) (*T, error) {
	cached, err := fromCache(ctx)
	if err != nil {
		// Covers both decode failures and an unreachable cache.
		log.Warn("cache read failed, falling back to persistence", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	persisted, err := fromPersistence()
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		return nil, nil
	}

	if err := repopulate(ctx, persisted); err != nil {
		// The next miss will simply try again.
		log.Warn("cache repopulation failed", "error", err)
	}
	return persisted, nil
}
