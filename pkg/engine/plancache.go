package engine

import (
	"github.com/yourusername/bgrules/internal/positionid"
)

// DefaultPlanCacheSize is enough for the widest double-roll search.
const DefaultPlanCacheSize = 1 << 12

// planEntry stores the best sequence length for a position and a pip
// multiset.
type planEntry struct {
	key   positionid.PositionKey
	pips  int32
	moves int8
	valid bool
}

// planNode holds the primary and secondary entries of one slot.
type planNode struct {
	primary   planEntry
	secondary planEntry
}

// PlanCache memoizes planner results. It is a two-way associative table
// indexed by a MurmurHash3-style mix of the position key and the pip
// multiset. Entries may be evicted; a miss only costs a recomputation.
// Keys are taken from the side on roll, so one cache serves both sides.
// A PlanCache is not safe for concurrent use.
type PlanCache struct {
	entries  []planNode
	hashMask uint32

	lookups uint64
	hits    uint64
	adds    uint64
}

// NewPlanCache creates a cache with room for about size entries, rounded
// up to a power of two.
func NewPlanCache(size uint32) *PlanCache {
	if size < 2 {
		size = 2
	}
	if size > 1<<24 {
		size = 1 << 24
	}
	p := uint32(2)
	for p < size {
		p <<= 1
	}
	return &PlanCache{
		entries:  make([]planNode, p/2),
		hashMask: p/2 - 1,
	}
}

// Flush clears all entries and statistics.
func (c *PlanCache) Flush() {
	for i := range c.entries {
		c.entries[i] = planNode{}
	}
	c.lookups, c.hits, c.adds = 0, 0, 0
}

func (c *PlanCache) hash(key positionid.PositionKey, pips int32) uint32 {
	const c1 = 0xcc9e2d51
	const c2 = 0x1b873593

	mix := func(h, k uint32) uint32 {
		k *= c1
		k = k<<15 | k>>17
		k *= c2
		h ^= k
		h = h<<13 | h>>19
		return h*5 + 0xe6546b64
	}

	h := uint32(0)
	for _, k := range key.Data {
		h = mix(h, k)
	}
	h = mix(h, uint32(pips))

	h ^= 32
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16

	return h & c.hashMask
}

// Lookup returns the cached sequence length, if present.
func (c *PlanCache) Lookup(key positionid.PositionKey, pips int32) (int, bool) {
	c.lookups++
	node := &c.entries[c.hash(key, pips)]
	for _, e := range [2]*planEntry{&node.primary, &node.secondary} {
		if e.valid && e.pips == pips && e.key == key {
			c.hits++
			return int(e.moves), true
		}
	}
	return 0, false
}

// Add stores a result, demoting the slot's primary entry.
func (c *PlanCache) Add(key positionid.PositionKey, pips int32, moves int) {
	node := &c.entries[c.hash(key, pips)]
	node.secondary = node.primary
	node.primary = planEntry{key: key, pips: pips, moves: int8(moves), valid: true}
	c.adds++
}

// Stats returns cache statistics.
func (c *PlanCache) Stats() (lookups, hits, adds uint64) {
	return c.lookups, c.hits, c.adds
}

// HitRate returns the cache hit rate as a percentage.
func (c *PlanCache) HitRate() float64 {
	if c.lookups == 0 {
		return 0
	}
	return float64(c.hits) / float64(c.lookups) * 100
}
