// Package claim collapses duplicate concurrent derivations of the same
// structure. Claims are best effort, never a correctness requirement: when
// Redis is unavailable or a claim expires, callers simply compute
// independently and the store absorbs the duplicate write.
package claim

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	pkgredis "github.com/sjando/jolecule/pkg/redis"
)

const keyPrefix = "claim:structure:"

// Coordinator deduplicates concurrent computations, in-process via
// singleflight and across processes via short-lived Redis claims.
type Coordinator struct {
	redis  *pkgredis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a Coordinator. redis may be nil, in which case claims only
// collapse duplicates within this process.
func New(redis *pkgredis.Client, ttl time.Duration) *Coordinator {
	return &Coordinator{
		redis:  redis,
		ttl:    ttl,
		logger: slog.Default().With("component", "claim"),
	}
}

// Do runs fn, collapsing concurrent in-process calls for the same structure
// id into a single execution whose result is shared.
func (c *Coordinator) Do(structureID string, fn func() (string, error)) (string, bool, error) {
	v, err, shared := c.group.Do(structureID, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", shared, err
	}
	return v.(string), shared, nil
}

// TryAcquire attempts to claim the structure id across processes, reporting
// whether the claim was won and returning a release function. A failed Redis
// round trip degrades to winning, keeping the loader available.
func (c *Coordinator) TryAcquire(ctx context.Context, structureID string) (release func(), acquired bool) {
	if c.redis == nil {
		return func() {}, true
	}
	key := keyPrefix + structureID
	ok, err := c.redis.SetNX(ctx, key, 1, c.ttl)
	if err != nil {
		c.logger.Warn("claim attempt failed, computing anyway",
			"structure_id", structureID,
			"error", err,
		)
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}
	return func() {
		// The request context may already be done; release on its own.
		if err := c.redis.Del(context.Background(), key); err != nil {
			c.logger.Warn("releasing claim failed", "key", key, "error", err)
		}
	}, true
}
