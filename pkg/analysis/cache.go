package analysis

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/graph"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
)

// BuildFunc builds the graph for one SBOM on a cache miss
type BuildFunc func(ctx context.Context) (*graph.PackageGraph, error)

// GraphCache is a bounded, process-local cache of built SBOM graphs.
//
// Graphs are immutable and shared by pointer, so readers obtained
// through GetOrBuild keep working after their entry is evicted; the
// cache only drops its own reference. Accounting uses the graphs'
// approximate byte size against MaxSize; entries are evicted least
// recently used until the size settles at or below the bound.
//
// Concurrent builds of the same key are not deduplicated. Losing a
// race costs one redundant build; the cache keeps whichever graph was
// inserted first and every caller still gets a fully built graph.
type GraphCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	// recency holds sbom ids, most recently used at the front.
	recency *list.List
	maxSize uint64
	size    uint64
}

type cacheEntry struct {
	graph *graph.PackageGraph
	size  uint64
	elem  *list.Element
}

// NewGraphCache creates a cache bounded by maxSize approximate bytes
func NewGraphCache(maxSize uint64) *GraphCache {
	return &GraphCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		recency: list.New(),
		maxSize: maxSize,
	}
}

// GetOrBuild returns the cached graph for sbomID, building and
// inserting it on a miss. Build failures propagate to the caller and
// are never cached; the next access retries.
func (c *GraphCache) GetOrBuild(ctx context.Context, sbomID uuid.UUID, build BuildFunc) (*graph.PackageGraph, error) {
	c.mu.Lock()
	if entry, ok := c.entries[sbomID]; ok {
		c.recency.MoveToFront(entry.elem)
		g := entry.graph
		c.mu.Unlock()
		return g, nil
	}
	c.mu.Unlock()

	// Build without holding the lock: a slow build of one SBOM must not
	// block readers of other keys.
	built, err := build(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have built the same key in the meantime;
	// keep the resident graph so all readers share one instance.
	if entry, ok := c.entries[sbomID]; ok {
		c.recency.MoveToFront(entry.elem)
		return entry.graph, nil
	}

	entry := &cacheEntry{
		graph: built,
		size:  built.EstimatedSize(),
		elem:  c.recency.PushFront(sbomID),
	}
	c.entries[sbomID] = entry
	c.size += entry.size
	c.evictLocked()

	return built, nil
}

// evictLocked drops least recently used entries until the size bound
// holds. A graph larger than the bound on its own is dropped too; the
// caller already holds its pointer, the cache just will not retain it.
func (c *GraphCache) evictLocked() {
	for c.size > c.maxSize && c.recency.Len() > 0 {
		elem := c.recency.Back()
		sbomID := elem.Value.(uuid.UUID)
		entry := c.entries[sbomID]

		c.recency.Remove(elem)
		delete(c.entries, sbomID)
		c.size -= entry.size

		logging.Debug("evicted sbom graph from cache",
			"sbom_id", sbomID.String(),
			"size", entry.size,
		)
	}
}

// SizeUsed returns the approximate byte size of all resident graphs
func (c *GraphCache) SizeUsed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of resident graphs
func (c *GraphCache) Len() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.entries))
}

// Clear drops all resident graphs
func (c *GraphCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uuid.UUID]*cacheEntry)
	c.recency.Init()
	c.size = 0
}
