package gemini

import (
	"container/list"
	"sync"
)

// queryCache is a bounded FIFO cache for query embeddings. Questions repeat
// (follow-ups re-embed the rewritten query, eval runs replay scenarios), and
// embeddings for identical text never change, so insertion-order eviction is
// enough. Size <= 0 disables caching.
type queryCache struct {
	mu    sync.Mutex
	size  int
	items map[string][]float32
	order *list.List
}

func newQueryCache(size int) *queryCache {
	return &queryCache{
		size:  size,
		items: make(map[string][]float32),
		order: list.New(),
	}
}

func (c *queryCache) get(key string) ([]float32, bool) {
	if c.size <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, ok := c.items[key]
	return vec, ok
}

func (c *queryCache) add(key string, vec []float32) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return
	}
	if len(c.items) >= c.size {
		oldest := c.order.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(string))
			c.order.Remove(oldest)
		}
	}
	c.order.PushFront(key)
	c.items[key] = vec
}
