package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EmbeddingCache is a thread-safe LRU of embeddings keyed by text.
type EmbeddingCache struct {
	lru *lru.Cache[string, []float32]
}

// NewEmbeddingCache creates a cache holding at most capacity entries (1 when smaller).
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity < 1 {
		capacity = 1
	}
	c, err := lru.New[string, []float32](capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &EmbeddingCache{lru: c}
}

// Get returns a copy of the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Set stores a copy of value under key, evicting the least recently used entry when full.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.lru.Add(key, append([]float32(nil), value...))
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int { return c.lru.Len() }

// CachedEmbedder serves single-text embeddings from an LRU. Batch calls, used
// for corpus indexing, bypass the cache.
type CachedEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{Embedder: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached vector for text or computes and caches it.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, v)
	return v, nil
}

// CacheLen returns the number of cached query vectors.
func (e *CachedEmbedder) CacheLen() int { return e.cache.Len() }
