package txn

import (
	"container/list"
	"sync"

	"github.com/arbordb/arbor/internal/record"
)

// pageCache is a bounded LRU keyed by a committed page's file offset —
// once written, a page's bytes at a given offset never change (every
// mutation copy-on-writes a new page at a new offset), so offset alone
// is a stable, collision-free cache key without needing to carry
// (indexType, pageKey, revision) (§5 "Resource-level page cache:
// read-through, read-mostly; entries keyed by (indexType, pageKey)").
// Each transaction keeps its own small pageCache in front of the
// resource-level shared one (§4.6 "a per-transaction page cache
// (bounded, LRU), a reference to the shared resource-level page
// cache").
type pageCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List
}

type cacheEntry struct {
	offset uint64
	page   *record.Page
}

func newPageCache(capacity int) *pageCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &pageCache{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

func (c *pageCache) get(offset uint64) (*record.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[offset]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).page, true
}

func (c *pageCache) put(offset uint64, p *record.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[offset]; ok {
		el.Value.(*cacheEntry).page = p
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{offset: offset, page: p})
	c.entries[offset] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).offset)
		}
	}
}
