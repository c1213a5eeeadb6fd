// Package inmemory keeps process-lifetime state in memory.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/and161185/mdm-forwarder/internal/mdm"
	"github.com/and161185/mdm-forwarder/model"
	"golang.org/x/sync/singleflight"
)

type cachedHandle struct {
	id     model.MetricIdentity
	handle mdm.Handle
}

// HandleCache maps (account, identity) to the backend handle created for it.
// Entries live as long as the cache; the set of identities is bounded by the
// distinct (object, counter) pairs seen, so nothing is evicted.
type HandleCache struct {
	backend  mdm.Backend
	handles  map[string]cachedHandle
	mu       sync.RWMutex
	inflight singleflight.Group
}

func NewHandleCache(backend mdm.Backend) *HandleCache {
	return &HandleCache{
		backend: backend,
		handles: make(map[string]cachedHandle),
	}
}

// Resolve returns the handle for id, creating it through the backend on
// first use. At most one handle is created per key even under concurrent
// calls; callers racing on the same key share one creation. The lock is not
// held while the backend works, so hits on other keys never wait behind a
// slow creation. A failed creation is not cached.
func (c *HandleCache) Resolve(ctx context.Context, account string, id model.MetricIdentity) (mdm.Handle, error) {
	key := account + model.KeySeparator + id.Key()

	if h, ok := c.lookup(key); ok {
		return h, nil
	}

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		// A creation for key may have finished between lookup and Do.
		if h, ok := c.lookup(key); ok {
			return h, nil
		}

		handle, err := c.backend.NewMetric(ctx, account, id)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.handles[key] = cachedHandle{id: id, handle: handle}
		c.mu.Unlock()
		return handle, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create metric %s/%s: %w", id.Namespace, id.Metric, err)
	}
	return v.(mdm.Handle), nil
}

func (c *HandleCache) lookup(key string) (mdm.Handle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handles[key]
	return h.handle, ok
}

// Len returns the number of cached handles.
func (c *HandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// Identities returns the cached identities ordered by namespace, metric and
// dimension names.
func (c *HandleCache) Identities() []model.MetricIdentity {
	c.mu.RLock()
	result := make([]model.MetricIdentity, 0, len(c.handles))
	for _, h := range c.handles {
		result = append(result, h.id)
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result
}
