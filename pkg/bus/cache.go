package bus

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCacheSize is the number of entries in a CPU's L1 cache.
const DefaultCacheSize = 128

// CacheStats counts cache traffic since construction or the last Flush.
type CacheStats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	Invalidations uint64 `json:"invalidations"`
}

// L1Cache maps RAM addresses to their last known byte. Entries are only
// created on a read miss and are dropped (never updated) on writes, so the
// underlying list is ordered by insertion and eviction is FIFO. Reads use
// Peek so a hit never reorders the list.
type L1Cache struct {
	entries *simplelru.LRU[uint16, byte]
	size    int
	stats   CacheStats
}

func NewL1Cache(size int) (*L1Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("l1 cache size must be positive, got %d", size)
	}
	entries, err := simplelru.NewLRU[uint16, byte](size, nil)
	if err != nil {
		return nil, err
	}
	return &L1Cache{entries: entries, size: size}, nil
}

// Lookup returns the cached byte for addr.
func (c *L1Cache) Lookup(addr uint16) (byte, bool) {
	v, ok := c.entries.Peek(addr)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

// Fill records a byte fetched from RAM after a miss. When the cache is full
// the oldest inserted entry is evicted.
func (c *L1Cache) Fill(addr uint16, val byte) {
	if c.entries.Contains(addr) {
		// Keeps its original insertion slot.
		return
	}
	if c.entries.Add(addr, val) {
		c.stats.Evictions++
	}
}

// Invalidate drops addr from the cache.
func (c *L1Cache) Invalidate(addr uint16) {
	if c.entries.Remove(addr) {
		c.stats.Invalidations++
	}
}

// Flush empties the cache and resets its counters.
func (c *L1Cache) Flush() {
	c.entries.Purge()
	c.stats = CacheStats{}
}

func (c *L1Cache) Len() int {
	return c.entries.Len()
}

func (c *L1Cache) Size() int {
	return c.size
}

// Addresses returns the cached addresses, oldest first.
func (c *L1Cache) Addresses() []uint16 {
	return c.entries.Keys()
}

func (c *L1Cache) Stats() CacheStats {
	return c.stats
}
