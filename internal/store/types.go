package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Buffer is a named, immutable document plus metadata.
type Buffer struct {
	ID          int64
	Name        string
	Content     string
	Source      string // originating path, empty when created from text
	Size        int    // bytes
	LineCount   int
	Hash        string // SHA-256 hex of the UTF-8 content
	ContentType string // recognized content type tag, may be empty
	ChunkCount  int
	CreatedAt   int64
	UpdatedAt   int64
}

// NewBuffer builds a buffer record from name and content, computing the
// derived metadata.
func NewBuffer(name, content, source string) *Buffer {
	sum := sha256.Sum256([]byte(content))
	return &Buffer{
		Name:        name,
		Content:     content,
		Source:      source,
		Size:        len(content),
		LineCount:   countLines(content),
		Hash:        hex.EncodeToString(sum[:]),
		ContentType: contentTypeFor(source),
	}
}

// countLines counts newline-terminated lines plus a trailing partial line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// contentTypeFor derives a coarse content type tag from the source path.
func contentTypeFor(source string) string {
	dot := strings.LastIndexByte(source, '.')
	if dot < 0 || dot == len(source)-1 {
		return ""
	}
	switch strings.ToLower(source[dot+1:]) {
	case "md", "markdown":
		return "markdown"
	case "txt", "text":
		return "text"
	case "json":
		return "json"
	case "go", "rs", "py", "js", "jsx", "ts", "tsx", "java", "c", "cpp", "h", "hpp", "rb", "php":
		return "code"
	default:
		return ""
	}
}

// BM25Result is a single sparse search hit. Score is the negated FTS5
// bm25() value, so higher means a better match.
type BM25Result struct {
	ChunkID int64
	Score   float64
}

// VectorResult is a single dense search hit.
type VectorResult struct {
	ChunkID int64
	Score   float32 // cosine similarity
}

// Stats summarizes the store contents.
type Stats struct {
	Initialized       bool
	DBPath            string
	DBSizeBytes       int64
	BufferCount       int
	ChunkCount        int
	TotalContentBytes int
	EmbeddingCount    int
	SchemaVersion     int
}
