package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/chunk"
	"github.com/rlmtools/rlm/internal/index"
)

// chunkFlags holds the chunking options shared by load and write-chunks.
type chunkFlags struct {
	chunkSize int
	overlap   int
	cmd       *cobra.Command
}

func (f *chunkFlags) register(cmd *cobra.Command, defaults chunk.Config) {
	f.cmd = cmd
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", defaults.ChunkSize, "Target chunk size in bytes")
	cmd.Flags().IntVar(&f.overlap, "overlap", defaults.Overlap, "Bytes shared with the previous chunk")
}

func (f *chunkFlags) config(a *app) chunk.Config {
	cfg := chunk.DefaultConfig()
	if a.settings.Chunking.ChunkSize > 0 {
		cfg.ChunkSize = a.settings.Chunking.ChunkSize
	}
	if a.settings.Chunking.Overlap > 0 {
		cfg.Overlap = a.settings.Chunking.Overlap
	}
	if f.cmd.Flags().Changed("chunk-size") && f.chunkSize > 0 {
		cfg.ChunkSize = f.chunkSize
	}
	if f.cmd.Flags().Changed("overlap") {
		cfg.Overlap = f.overlap
	}
	return cfg
}

func newLoadCmd(a *app) *cobra.Command {
	var name, chunker string
	flags := &chunkFlags{}

	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Ingest a text file into a chunked buffer",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			if a.settings.Chunking.Strategy != "" && !cmd.Flags().Changed("chunker") {
				chunker = a.settings.Chunking.Strategy
			}

			coord := index.NewCoordinator(s, a.newEmbedder())
			res, err := coord.LoadFile(ctx, args[0], name, chunker, flags.config(a))
			if err != nil {
				return a.renderError(err)
			}

			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}

			a.writer.Success("loaded %q: buffer %d, %d chunks (%d bytes)",
				res.Buffer.Name, res.Buffer.ID, res.ChunkCount, res.Buffer.Size)
			if res.EmbeddingsPending {
				a.writer.Warning("embeddings pending; run 'rlm chunk embed %d'", res.Buffer.ID)
			}

			return a.writer.JSON(map[string]any{
				"buffer_id":          res.Buffer.ID,
				"name":               res.Buffer.Name,
				"size":               res.Buffer.Size,
				"chunk_count":        res.ChunkCount,
				"embeddings_pending": res.EmbeddingsPending,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Buffer name (defaults to the file name)")
	cmd.Flags().StringVar(&chunker, "chunker", chunk.StrategySemantic, "Chunking strategy (fixed, semantic, code, parallel)")
	flags.register(cmd, chunk.DefaultConfig())
	return cmd
}
