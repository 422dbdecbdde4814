// Package cache provides a size-bounded cache of transform results with
// cost-based LRU eviction.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

// DefaultMaxSize is the default memory budget of a cache (32 MB).
const DefaultMaxSize = 32 * 1024 * 1024

const (
	bytesPerKB = 1024.0
	// entryOverhead approximates the bookkeeping bytes of one entry.
	entryOverhead = 128
	// evictionSampleSize is the number of tail entries compared per eviction.
	evictionSampleSize = 5
)

// Key identifies one transform: the grammar, the target modules and the
// source text.
type Key uint64

// KeyOf hashes the inputs that determine a transform result.
func KeyOf(dialect string, targets []string, source string) Key {
	digest := xxhash.New()

	_, _ = digest.WriteString(dialect)
	_, _ = digest.Write([]byte{0})

	for _, target := range targets {
		_, _ = digest.WriteString(target)
		_, _ = digest.Write([]byte{0})
	}

	_, _ = digest.WriteString(source)

	return Key(digest.Sum64())
}

// LRU caches rewrite results up to a memory budget. Eviction samples the
// least recently used entries and drops the one with the lowest access
// count per kilobyte.
type LRU struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	head        *entry // Most recently used.
	tail        *entry // Least recently used.
	maxSize     int64
	currentSize int64

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key         Key
	result      rewrite.Result
	size        int64
	accessCount int64
	prev        *entry
	next        *entry
}

func (e *entry) evictionCost() float64 {
	sizeKB := max(float64(e.size)/bytesPerKB, 1)

	return float64(e.accessCount) / sizeKB
}

// New creates a cache holding at most maxSize bytes. A non-positive
// maxSize selects DefaultMaxSize.
func New(maxSize int64) *LRU {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &LRU{
		entries: make(map[Key]*entry),
		maxSize: maxSize,
	}
}

// Get returns the cached result for key.
func (c *LRU) Get(key Key) (rewrite.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return rewrite.Result{}, false
	}

	c.hits.Add(1)

	e.accessCount++
	c.moveToFront(e)

	return e.result, true
}

// Put stores result under key, evicting entries until it fits. Results
// larger than the whole cache are not stored.
func (c *LRU) Put(key Key, result rewrite.Result) {
	size := resultSize(result)
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.accessCount++
		c.moveToFront(e)

		return
	}

	for c.currentSize+size > c.maxSize && c.tail != nil {
		c.evictLowestCost()
	}

	e := &entry{key: key, result: result, size: size, accessCount: 1}

	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Stats returns a snapshot of the cache counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.currentSize,
		MaxSize:     c.maxSize,
	}
}

// CacheHits returns the total hit count.
func (c *LRU) CacheHits() int64 { return c.hits.Load() }

// CacheMisses returns the total miss count.
func (c *LRU) CacheMisses() int64 { return c.misses.Load() }

// CacheBytes returns the bytes currently held.
func (c *LRU) CacheBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentSize
}

// Clear removes all entries. Counters are kept.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.head = nil
	c.tail = nil
	c.currentSize = 0
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
	MaxSize     int64
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

func resultSize(result rewrite.Result) int64 {
	size := int64(len(result.Output)) + entryOverhead

	for _, edit := range result.Edits {
		size += int64(len(edit.Original)+len(edit.Replacement)+len(edit.ModulePath)) + entryOverhead
	}

	return size
}

func (c *LRU) moveToFront(e *entry) {
	if e == c.head {
		return
	}

	c.removeFromList(e)
	c.addToFront(e)
}

func (c *LRU) addToFront(e *entry) {
	e.prev = nil
	e.next = c.head

	if c.head != nil {
		c.head.prev = e
	}

	c.head = e

	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU) removeFromList(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

// evictLowestCost drops the cheapest of the evictionSampleSize least
// recently used entries.
func (c *LRU) evictLowestCost() {
	victim := c.tail
	if victim == nil {
		return
	}

	lowest := victim.evictionCost()

	candidate := victim.prev
	for sampled := 1; candidate != nil && sampled < evictionSampleSize; sampled++ {
		if cost := candidate.evictionCost(); cost < lowest {
			lowest = cost
			victim = candidate
		}

		candidate = candidate.prev
	}

	c.removeFromList(victim)
	delete(c.entries, victim.key)
	c.currentSize -= victim.size
}
