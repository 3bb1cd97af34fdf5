// Package index orchestrates ingest: reading documents, chunking them,
// persisting buffers and chunks, and computing embeddings.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rlmtools/rlm/internal/chunk"
	"github.com/rlmtools/rlm/internal/embed"
	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/store"
	"github.com/rlmtools/rlm/internal/textutil"
)

// embedBatchSize bounds how many chunk contents are sent to the embedder at
// once.
const embedBatchSize = 32

// Coordinator wires the chunking pipeline to the store and the embedder.
type Coordinator struct {
	store    *store.Store
	embedder embed.Embedder
}

// NewCoordinator creates a coordinator.
func NewCoordinator(s *store.Store, embedder embed.Embedder) *Coordinator {
	return &Coordinator{store: s, embedder: embedder}
}

// IngestResult reports the outcome of a load.
type IngestResult struct {
	Buffer            *store.Buffer
	ChunkCount        int
	EmbeddingsPending bool
}

// LoadFile ingests a file: reads its bytes, validates UTF-8, chunks it with
// the named strategy, and persists everything in one transaction. Embedding
// failures degrade: the ingest still succeeds with embeddings pending.
func (c *Coordinator) LoadFile(ctx context.Context, path, name, chunkerName string, cfg chunk.Config) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rlmerr.Newf(rlmerr.ErrCodeFileNotFound, "file not found: %s", path)
		}
		return nil, rlmerr.Wrap(rlmerr.ErrCodeFileRead, err)
	}

	if offset, ok := textutil.ValidateUTF8(data); !ok {
		return nil, rlmerr.InvalidUTF8(offset)
	}

	if name == "" {
		name = filepath.Base(path)
	}
	cfg.Source = path

	return c.ingest(ctx, name, string(data), path, chunkerName, cfg)
}

// AddText ingests content supplied directly (the add-buffer verb), chunked
// with the semantic strategy at defaults.
func (c *Coordinator) AddText(ctx context.Context, name, content string) (*IngestResult, error) {
	if offset, ok := textutil.ValidateUTF8([]byte(content)); !ok {
		return nil, rlmerr.InvalidUTF8(offset)
	}
	return c.ingest(ctx, name, content, "", chunk.StrategySemantic, chunk.DefaultConfig())
}

func (c *Coordinator) ingest(ctx context.Context, name, content, source, chunkerName string, cfg chunk.Config) (*IngestResult, error) {
	chunker, err := chunk.New(chunkerName)
	if err != nil {
		return nil, err
	}

	// Chunking runs outside the store gate; only the final transaction
	// takes the lock.
	chunks, err := chunker.Chunk(0, content, cfg)
	if err != nil {
		return nil, err
	}

	vectors, pending := c.embedContents(ctx, chunkContents(chunks))

	buf := store.NewBuffer(name, content, source)
	if _, err := c.store.IngestBuffer(ctx, buf, chunks, vectors, c.modelID()); err != nil {
		return nil, err
	}

	return &IngestResult{
		Buffer:            buf,
		ChunkCount:        len(chunks),
		EmbeddingsPending: pending && len(chunks) > 0,
	}, nil
}

// UpdateBuffer replaces a buffer's content, regenerating chunks and keeping
// embeddings whose (index, content hash) pair is unchanged. When reembed is
// set, new or modified chunks are embedded immediately.
func (c *Coordinator) UpdateBuffer(ctx context.Context, identifier, content string, reembed bool) (*IngestResult, error) {
	if offset, ok := textutil.ValidateUTF8([]byte(content)); !ok {
		return nil, rlmerr.InvalidUTF8(offset)
	}

	buf, err := c.store.ResolveBuffer(ctx, identifier)
	if err != nil {
		return nil, err
	}

	// Reuse the strategy the buffer was chunked with, defaulting to
	// semantic.
	strategy := chunk.StrategySemantic
	if existing, err := c.store.GetChunksByBuffer(ctx, buf.ID); err == nil && len(existing) > 0 && existing[0].Strategy != "" {
		strategy = existing[0].Strategy
	}
	chunker, err := chunk.New(strategy)
	if err != nil {
		chunker = chunk.NewSemanticChunker()
	}

	cfg := chunk.DefaultConfig()
	cfg.Source = buf.Source
	chunks, err := chunker.Chunk(buf.ID, content, cfg)
	if err != nil {
		return nil, err
	}

	newBuf := store.NewBuffer(buf.Name, content, buf.Source)
	pendingIDs, err := c.store.ReplaceBufferContent(ctx, buf.ID, newBuf, chunks)
	if err != nil {
		return nil, err
	}
	newBuf.ID = buf.ID
	newBuf.ChunkCount = len(chunks)

	pending := len(pendingIDs) > 0
	if pending && reembed {
		if err := c.embedPending(ctx, buf.ID); err != nil {
			slog.Warn("re-embed after update failed",
				slog.String("buffer", buf.Name),
				slog.String("error", err.Error()))
		} else {
			pending = false
		}
	}

	return &IngestResult{
		Buffer:            newBuf,
		ChunkCount:        len(chunks),
		EmbeddingsPending: pending,
	}, nil
}

// EmbedBuffer computes embeddings for a buffer's chunks. With force, all
// chunks are re-embedded; otherwise only those without vectors. Returns the
// number of chunks embedded.
func (c *Coordinator) EmbedBuffer(ctx context.Context, bufferID int64, force bool) (int, error) {
	if c.embedder == nil {
		return 0, rlmerr.Newf(rlmerr.ErrCodeEmbeddingFailed, "no embedder configured")
	}

	var ids []int64
	var contents []string
	if force {
		chunks, err := c.store.GetChunksByBuffer(ctx, bufferID)
		if err != nil {
			return 0, err
		}
		for _, ch := range chunks {
			ids = append(ids, ch.ID)
			contents = append(contents, ch.Content)
		}
	} else {
		var err error
		ids, contents, err = c.store.PendingChunks(ctx, bufferID)
		if err != nil {
			return 0, err
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	for start := 0; start < len(ids); start += embedBatchSize {
		end := min(start+embedBatchSize, len(ids))
		vectors, err := c.embedder.EmbedBatch(ctx, contents[start:end])
		if err != nil {
			return start, rlmerr.Wrap(rlmerr.ErrCodeEmbeddingFailed, err)
		}
		if err := c.store.StoreEmbeddings(ctx, ids[start:end], vectors, c.modelID()); err != nil {
			return start, err
		}
	}
	return len(ids), nil
}

// embedPending embeds a buffer's chunks that lack vectors.
func (c *Coordinator) embedPending(ctx context.Context, bufferID int64) error {
	_, err := c.EmbedBuffer(ctx, bufferID, false)
	return err
}

// embedContents embeds chunk contents in batches, degrading to pending on
// failure or when no embedder is configured.
func (c *Coordinator) embedContents(ctx context.Context, contents []string) (vectors [][]float32, pending bool) {
	if c.embedder == nil {
		return nil, true
	}
	if len(contents) == 0 {
		return [][]float32{}, false
	}

	all := make([][]float32, 0, len(contents))
	for start := 0; start < len(contents); start += embedBatchSize {
		end := min(start+embedBatchSize, len(contents))
		batch, err := c.embedder.EmbedBatch(ctx, contents[start:end])
		if err != nil {
			slog.Warn("embedding failed during ingest, continuing without vectors",
				slog.String("error", err.Error()))
			return nil, true
		}
		all = append(all, batch...)
	}
	return all, false
}

// modelID returns the active embedder identity, or empty without one.
func (c *Coordinator) modelID() string {
	if c.embedder == nil {
		return ""
	}
	return c.embedder.ModelID()
}

func chunkContents(chunks []chunk.Chunk) []string {
	contents := make([]string, len(chunks))
	for i, ch := range chunks {
		contents[i] = ch.Content
	}
	return contents
}
