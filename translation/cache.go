package translation

import (
	"sync"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// instructionSize is the directory block size: one guest instruction, so
// every function entry maps to its own tag.
const instructionSize = 4

// Cache holds compiled units keyed by guest entry address. It is a
// set-associative cache with LRU replacement; lookups and insertions may
// come from any thread.
type Cache struct {
	mu sync.Mutex

	ways      int
	directory *akitacache.DirectoryImpl

	// units is indexed by (setID * ways + wayID).
	units []*CompiledUnit

	stats CacheStatistics
}

// CacheStatistics counts cache activity.
type CacheStatistics struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
}

// NewCache creates a cache of sets x ways entries.
func NewCache(sets, ways int) *Cache {
	return &Cache{
		ways: ways,
		directory: akitacache.NewDirectory(
			sets,
			ways,
			instructionSize,
			akitacache.NewLRUVictimFinder(),
		),
		units: make([]*CompiledUnit, sets*ways),
	}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.ways + block.WayID
}

// Get returns the unit compiled for address.
func (c *Cache) Get(address uint64) (*CompiledUnit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block := c.directory.Lookup(0, address)
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block)

	return c.units[c.blockIndex(block)], true
}

// Put stores unit, evicting the least recently used unit of its set if
// needed. An existing unit for the same address is replaced.
func (c *Cache) Put(unit *CompiledUnit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	block := c.directory.Lookup(0, unit.Address)
	if block == nil || !block.IsValid {
		block = c.directory.FindVictim(unit.Address)
		if block == nil {
			return
		}

		if block.IsValid {
			c.stats.Evictions++
		}
	}

	block.Tag = unit.Address
	block.IsValid = true
	block.IsDirty = false

	c.units[c.blockIndex(block)] = unit
	c.directory.Visit(block)
}

// InvalidateRange drops every unit whose guest code overlaps
// [address, address+size).
func (c *Cache) InvalidateRange(address, size uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := address + size
	dropped := 0

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid {
				continue
			}

			idx := c.blockIndex(block)
			if unit := c.units[idx]; unit != nil && unit.Range.Overlaps(address, end) {
				block.IsValid = false
				c.units[idx] = nil
				dropped++
			}
		}
	}

	c.stats.Invalidations += uint64(dropped)

	return dropped
}

// Len returns the number of cached units.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, u := range c.units {
		if u != nil {
			n++
		}
	}

	return n
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.directory.Reset()

	for i := range c.units {
		c.units[i] = nil
	}
}
