package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rlmtools/rlm/internal/chunk"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/store"
	"github.com/rlmtools/rlm/internal/textutil"
)

// DefaultPeekLength is the window returned by Peek when no end is given.
const DefaultPeekLength = 3000

// Peek returns the buffer substring [start, end), snapped to UTF-8
// boundaries. end <= 0 defaults to start + DefaultPeekLength. Offsets past
// the end clamp.
func (c *Coordinator) Peek(ctx context.Context, identifier string, start, end int) (string, *store.Buffer, error) {
	buf, err := c.store.ResolveBuffer(ctx, identifier)
	if err != nil {
		return "", nil, err
	}

	if start < 0 {
		start = 0
	}
	if end <= 0 {
		end = start + DefaultPeekLength
	}
	if end > len(buf.Content) {
		end = len(buf.Content)
	}
	start = textutil.FloorBoundary(buf.Content, start)
	end = textutil.FloorBoundary(buf.Content, end)
	if start > end {
		start = end
	}
	return buf.Content[start:end], buf, nil
}

// GrepMatch is a single regex hit with surrounding context.
type GrepMatch struct {
	Start   int    // byte offset of the match
	End     int    // byte offset past the match
	Line    int    // 1-based line number of the match start
	Match   string // matched text
	Context string // match plus up to window bytes either side
}

// Grep finds regex matches in a buffer's content, each with up to window
// bytes of context on both sides. Context boundaries are byte-aligned with
// codepoint starts. ignoreCase compiles the pattern case-insensitively.
func (c *Coordinator) Grep(ctx context.Context, identifier, pattern string, maxMatches, window int, ignoreCase bool) ([]GrepMatch, *store.Buffer, error) {
	buf, err := c.store.ResolveBuffer(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}

	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil, rlmerr.Wrap(rlmerr.ErrCodeInvalidRegex, err)
	}

	if maxMatches <= 0 {
		maxMatches = 20
	}
	if window < 0 {
		window = 0
	}

	content := buf.Content
	var matches []GrepMatch
	line := 1
	scanned := 0
	for _, loc := range re.FindAllStringIndex(content, maxMatches) {
		ctxStart := textutil.CeilBoundary(content, max(0, loc[0]-window))
		ctxEnd := textutil.FloorBoundary(content, min(len(content), loc[1]+window))

		line += strings.Count(content[scanned:loc[0]], "\n")
		scanned = loc[0]

		matches = append(matches, GrepMatch{
			Start:   loc[0],
			End:     loc[1],
			Line:    line,
			Match:   content[loc[0]:loc[1]],
			Context: content[ctxStart:ctxEnd],
		})
	}
	return matches, buf, nil
}

// WriteChunks chunks a buffer's content with the fixed strategy and writes
// each chunk to <outDir>/<prefix>-NNNN.txt. The prefix must not escape the
// output directory. Returns the written file paths.
func (c *Coordinator) WriteChunks(ctx context.Context, identifier, outDir, prefix string, cfg chunk.Config) ([]string, error) {
	if strings.Contains(prefix, "..") || strings.ContainsAny(prefix, `/\`) {
		return nil, rlmerr.Newf(rlmerr.ErrCodePathTraversal, "path traversal denied: %s", prefix)
	}

	buf, err := c.store.ResolveBuffer(ctx, identifier)
	if err != nil {
		return nil, err
	}

	chunks, err := chunk.NewFixedChunker().Chunk(buf.ID, buf.Content, cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeFileWrite, err)
	}

	paths := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		path := filepath.Join(outDir, fmt.Sprintf("%s-%04d.txt", prefix, ch.Index))
		if err := os.WriteFile(path, []byte(ch.Content), 0o644); err != nil {
			return nil, rlmerr.Wrap(rlmerr.ErrCodeFileWrite, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
