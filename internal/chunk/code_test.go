package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package main

import "fmt"

func main() {
	fmt.Println("hello")
}

func helper() int {
	return 42
}

type Config struct {
	Name string
}

func (c Config) String() string {
	return c.Name
}
`

func codeCfg(size, overlap int, source string) Config {
	c := cfg(size, overlap)
	c.Source = source
	return c
}

func TestCodeChunker_GoDeclarations(t *testing.T) {
	chunker := NewCodeChunker()
	chunks, err := chunker.Chunk(1, goSource, codeCfg(60, 0, "main.go"))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Every chunk boundary except the first starts at a declaration line.
	for _, c := range chunks[1:] {
		line := goSource[c.Start:]
		isDecl := strings.HasPrefix(line, "func") || strings.HasPrefix(line, "type")
		assert.True(t, isDecl, "chunk start %d is not a declaration: %q", c.Start, firstLine(line))
	}

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, goSource[c.Start:c.End], c.Content)
		assert.Equal(t, "code", c.Strategy)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func TestCodeChunker_MergesSmallDeclarations(t *testing.T) {
	chunker := NewCodeChunker()
	// A large chunk size merges everything into a single chunk.
	chunks, err := chunker.Chunk(1, goSource, codeCfg(10000, 0, "main.go"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, goSource, chunks[0].Content)
}

func TestCodeChunker_SplitsOversizedDeclaration(t *testing.T) {
	var b strings.Builder
	b.WriteString("def big():\n")
	for i := 0; i < 100; i++ {
		b.WriteString("    x = compute_something_long(1, 2, 3)\n")
	}
	source := b.String()

	chunker := NewCodeChunker()
	chunks, err := chunker.Chunk(1, source, codeCfg(500, 100, "big.py"))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.Size(), 500)
		assert.Equal(t, source[c.Start:c.End], c.Content)
	}
	assert.Equal(t, len(source), chunks[len(chunks)-1].End)
}

func TestCodeChunker_UnknownExtensionFallsBack(t *testing.T) {
	text := "Plain prose. No code here at all. Just sentences to be chunked semantically."
	chunker := NewCodeChunker()
	chunks, err := chunker.Chunk(1, text, codeCfg(40, 0, "notes.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	// Semantic fallback still reports the code strategy name via Chunk.
	assert.Equal(t, "code", chunks[0].Strategy)
}

func TestCodeChunker_RustDeclarations(t *testing.T) {
	source := `pub struct Point {
    x: f64,
}

impl Point {
    fn norm(&self) -> f64 { self.x }
}

pub fn distance(a: &Point, b: &Point) -> f64 {
    (a.x - b.x).abs()
}
`
	starts := declStarts(source, rustPatterns)
	require.NotEmpty(t, starts)
	assert.Contains(t, starts, 0)                                        // pub struct
	assert.Contains(t, starts, strings.Index(source, "impl Point"))      // impl
	assert.Contains(t, starts, strings.Index(source, "pub fn distance")) // fn
}

func TestLanguageForSource(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"lib.rs", "rust"},
		{"app.PY", "python"},
		{"index.tsx", "javascript"},
		{"main.go", "go"},
		{"Main.java", "java"},
		{"util.hpp", "c"},
		{"task.rb", "ruby"},
		{"page.php", "php"},
		{"README.md", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, languageForSource(tt.source), tt.source)
	}
}
