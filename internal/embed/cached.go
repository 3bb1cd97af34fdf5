package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of embeddings kept in the LRU cache.
const DefaultCacheSize = 4096

// CachedEmbedder wraps another embedder with an in-process LRU cache keyed
// by content hash. Repeated embeds of unchanged chunk content (re-embed,
// diff-aware update) hit the cache instead of the model.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
// Size <= 0 uses DefaultCacheSize.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// EmbedBatch serves cached vectors and delegates misses to the inner
// embedder in a single batch, preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = cacheKey(c.inner.ModelID(), text)
		if v, ok := c.cache.Get(keys[i]); ok {
			results[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := c.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, idx := range missingIdx {
			results[idx] = vectors[j]
			c.cache.Add(keys[idx], vectors[j])
		}
	}

	return results, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelID returns the inner embedder's model identity.
func (c *CachedEmbedder) ModelID() string { return c.inner.ModelID() }

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// cacheKey derives the cache key from the model identity and content.
func cacheKey(modelID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
