package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/chunk"
	"github.com/rlmtools/rlm/internal/index"
	"github.com/rlmtools/rlm/internal/output"
	"github.com/rlmtools/rlm/internal/store"
)

func newChunkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Chunk operations",
	}
	cmd.AddCommand(newChunkGetCmd(a))
	cmd.AddCommand(newChunkListCmd(a))
	cmd.AddCommand(newChunkEmbedCmd(a))
	cmd.AddCommand(newChunkStatusCmd(a))
	return cmd
}

// chunkToDoc assembles the JSON chunk shape. includeContent controls
// whether the chunk text is carried.
func chunkToDoc(ctx context.Context, s *store.Store, c *chunk.Chunk, includeContent bool) (output.Chunk, error) {
	hasEmbedding, err := s.HasEmbedding(ctx, c.ID)
	if err != nil {
		return output.Chunk{}, err
	}
	doc := output.Chunk{
		ID:           c.ID,
		BufferID:     c.BufferID,
		Index:        c.Index,
		ByteRange:    [2]int{c.Start, c.End},
		Size:         c.Size(),
		HasEmbedding: hasEmbedding,
		Strategy:     c.Strategy,
		TokenCount:   c.TokenCount,
	}
	if includeContent {
		doc.Content = c.Content
	}
	return doc, nil
}

func newChunkGetCmd(a *app) *cobra.Command {
	var withMetadata bool

	cmd := &cobra.Command{
		Use:   "get <chunk-id>",
		Short: "Dereference a chunk by its global id",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return &usageError{err}
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			c, err := s.GetChunk(ctx, id)
			if err != nil {
				return a.renderError(err)
			}

			if withMetadata {
				a.writer.Field("id", c.ID)
				a.writer.Field("buffer_id", c.BufferID)
				a.writer.Field("index", c.Index)
				a.writer.Field("byte_range", []int{c.Start, c.End})
				a.writer.Field("strategy", c.Strategy)
				a.writer.Field("tokens", c.TokenCount)
				a.writer.Line("")
			}
			a.writer.Line("%s", c.Content)

			doc, err := chunkToDoc(ctx, s, c, true)
			if err != nil {
				return a.renderError(err)
			}
			return a.writer.JSON(doc)
		},
	}

	cmd.Flags().BoolVar(&withMetadata, "metadata", false, "Print the full chunk record")
	return cmd
}

func newChunkListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <buffer>",
		Short: "List the chunks of a buffer",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			buf, err := s.ResolveBuffer(ctx, args[0])
			if err != nil {
				return a.renderError(err)
			}
			chunks, err := s.GetChunksByBuffer(ctx, buf.ID)
			if err != nil {
				return a.renderError(err)
			}

			docs := make([]output.Chunk, 0, len(chunks))
			a.writer.Line("%-8s %-6s %-16s %-10s %s", "ID", "INDEX", "RANGE", "STRATEGY", "SIZE")
			for i := range chunks {
				c := &chunks[i]
				a.writer.Line("%-8d %-6d [%d,%d) %-10s %d", c.ID, c.Index, c.Start, c.End, c.Strategy, c.Size())
				doc, err := chunkToDoc(ctx, s, c, false)
				if err != nil {
					return a.renderError(err)
				}
				docs = append(docs, doc)
			}

			return a.writer.JSON(map[string]any{
				"buffer_id": buf.ID,
				"count":     len(docs),
				"chunks":    docs,
			})
		},
	}
}

func newChunkEmbedCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "embed <buffer>",
		Short: "Compute embeddings for a buffer's chunks",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			buf, err := s.ResolveBuffer(ctx, args[0])
			if err != nil {
				return a.renderError(err)
			}

			coord := index.NewCoordinator(s, a.newEmbedder())
			n, err := coord.EmbedBuffer(ctx, buf.ID, force)
			if err != nil {
				return a.renderError(err)
			}

			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}

			a.writer.Success("embedded %d chunks of buffer %d", n, buf.ID)
			return a.writer.JSON(map[string]any{
				"buffer_id": buf.ID,
				"embedded":  n,
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-embed chunks that already have vectors")
	return cmd
}

func newChunkStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show embedding coverage per buffer",
		Args:  wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coverage, err := s.EmbeddingStatus(ctx)
			if err != nil {
				return a.renderError(err)
			}

			type row struct {
				BufferID int64  `json:"buffer_id"`
				Name     string `json:"name"`
				Chunks   int    `json:"chunks"`
				Embedded int    `json:"embedded"`
			}
			rows := make([]row, 0, len(coverage))
			a.writer.Line("%-6s %-24s %8s %10s", "ID", "NAME", "CHUNKS", "EMBEDDED")
			for _, c := range coverage {
				a.writer.Line("%-6d %-24s %8d %10d", c.BufferID, c.BufferName, c.Chunks, c.Embedded)
				rows = append(rows, row{BufferID: c.BufferID, Name: c.BufferName, Chunks: c.Chunks, Embedded: c.Embedded})
			}

			return a.writer.JSON(map[string]any{
				"count":   len(rows),
				"buffers": rows,
			})
		},
	}
}
