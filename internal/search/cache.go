package search

import (
	"context"
	"slices"
	"sync"

	"github.com/desertthunder/anitrack/internal/models"
)

// Cache stores search batches by exact query string.
type Cache interface {
	Get(ctx context.Context, query string) ([]models.SearchResult, bool, error)
	Put(ctx context.Context, query string, results []models.SearchResult) error
	Clear(ctx context.Context) error
}

// MemoryCache is a process-local [Cache].
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]models.SearchResult
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]models.SearchResult)}
}

func (c *MemoryCache) Get(_ context.Context, query string) ([]models.SearchResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results, ok := c.entries[query]
	return slices.Clone(results), ok, nil
}

func (c *MemoryCache) Put(_ context.Context, query string, results []models.SearchResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = slices.Clone(results)
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// Len reports the number of cached queries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
