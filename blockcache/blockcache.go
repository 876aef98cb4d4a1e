// Package blockcache implements the Block-Number Cache (§4 C8): an
// in-process (min, max) pair tracking the lowest and highest block numbers
// this process has confirmed persisted, with an optional Redis-backed
// second level for multi-process deployments sharing one chain.
//
// Grounded on the teacher's own atomic progress flags (zk/syncer.L1Syncer's
// IsDownloading/IsSyncStarted atomic.Bool fields guarding concurrent
// Run/queryBlocks access) generalized from two booleans to a mutex-guarded
// (min, max) pair, and on go-redis/redis/v8 — one of the teacher's own
// direct dependencies that nothing else in this project's core loop
// otherwise exercises — for the cross-process layer.
package blockcache

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Cache is the per-chain handle. A nil redis client means single-process
// mode: Get/Set only ever touch the in-process pair.
type Cache struct {
	mu       sync.RWMutex
	min, max int64
	hasMin   bool
	hasMax   bool

	redis    *redis.Client
	minKey   string
	maxKey   string
}

// New builds a Cache for chainName. rdb may be nil to disable the
// cross-process layer entirely.
func New(chainName string, rdb *redis.Client) *Cache {
	return &Cache{
		redis:  rdb,
		minKey: fmt.Sprintf("evmindexer:%s:min_block", chainName),
		maxKey: fmt.Sprintf("evmindexer:%s:max_block", chainName),
	}
}

// Max returns the highest confirmed-persisted block number this process
// knows about, consulting Redis first when configured so a freshly
// started process picks up where any sibling process left off.
func (c *Cache) Max(ctx context.Context) (int64, bool) {
	c.mu.RLock()
	localMax, localOK := c.max, c.hasMax
	c.mu.RUnlock()

	if c.redis == nil {
		return localMax, localOK
	}
	remoteMax, ok, err := c.getRedis(ctx, c.maxKey)
	if err != nil || !ok {
		return localMax, localOK
	}
	if !localOK || remoteMax > localMax {
		return remoteMax, true
	}
	return localMax, localOK
}

// Min returns the lowest confirmed-persisted block number.
func (c *Cache) Min(ctx context.Context) (int64, bool) {
	c.mu.RLock()
	localMin, localOK := c.min, c.hasMin
	c.mu.RUnlock()

	if c.redis == nil {
		return localMin, localOK
	}
	remoteMin, ok, err := c.getRedis(ctx, c.minKey)
	if err != nil || !ok {
		return localMin, localOK
	}
	if !localOK || remoteMin < localMin {
		return remoteMin, true
	}
	return localMin, localOK
}

// Observe records that number has been confirmed persisted, widening the
// (min, max) pair as needed and mirroring the update to Redis when
// configured. Observe never narrows the pair: a shrinking range can only
// happen through explicit pruning, which this cache does not perform.
func (c *Cache) Observe(ctx context.Context, number int64) {
	c.mu.Lock()
	if !c.hasMax || number > c.max {
		c.max = number
		c.hasMax = true
	}
	if !c.hasMin || number < c.min {
		c.min = number
		c.hasMin = true
	}
	curMax, curMin := c.max, c.min
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	c.redis.Set(ctx, c.maxKey, curMax, 0)
	c.redis.Set(ctx, c.minKey, curMin, 0)
}

func (c *Cache) getRedis(ctx context.Context, key string) (int64, bool, error) {
	v, err := c.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
