package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// FallbackEmbedder generates deterministic pseudo-embeddings from content
// hashes. It keeps every code path exercisable without a model: similarity
// reflects lexical overlap, not semantics, so retrieval quality is degraded.
type FallbackEmbedder struct {
	mu         sync.RWMutex
	dimensions int
	closed     bool
}

// Signal weights for vector generation.
const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// NewFallbackEmbedder creates a fallback embedder with the given dimension.
// Zero or negative dimensions use FallbackDimensions.
func NewFallbackEmbedder(dimensions int) *FallbackEmbedder {
	if dimensions <= 0 {
		dimensions = FallbackDimensions
	}
	return &FallbackEmbedder{dimensions: dimensions}
}

// EmbedBatch generates embeddings for multiple texts.
func (e *FallbackEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = e.generate(text)
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *FallbackEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns the stable model identity.
func (e *FallbackEmbedder) ModelID() string {
	return fmt.Sprintf("fallback-%d", e.dimensions)
}

// Close releases resources.
func (e *FallbackEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// generate builds a hash-derived vector: word hashes as the primary signal,
// character trigrams for fuzzy matching, normalized to unit length.
func (e *FallbackEmbedder) generate(text string) []float32 {
	vector := make([]float32, e.dimensions)

	normalized := normalizeText(text)
	words := strings.Fields(normalized)
	for _, word := range words {
		h := hashString(word)
		idx := int(h % uint64(e.dimensions))
		sign := float32(1)
		if (h>>32)&1 == 1 {
			sign = -1
		}
		magnitude := 1 + float32((h>>16)&0xFF)/255
		vector[idx] += sign * magnitude * wordWeight
	}

	runes := []rune(normalized)
	for i := 0; i+3 <= len(runes); i++ {
		h := hashString(string(runes[i : i+3]))
		idx := int(h % uint64(e.dimensions))
		sign := float32(1)
		if (h>>32)&1 == 1 {
			sign = -1
		}
		vector[idx] += sign * trigramWeight
	}

	normalizeVector(vector)
	return vector
}

// normalizeText lowercases and replaces non-alphanumeric runes with spaces.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// hashString maps a string to a 64-bit FNV hash.
func hashString(s string) uint64 {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
