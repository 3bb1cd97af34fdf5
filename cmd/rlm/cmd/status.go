package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/output"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database status and counts",
		Args:  wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			stats, err := s.Stats(ctx)
			if err != nil {
				return a.renderError(err)
			}

			a.writer.Header("RLM status")
			a.writer.Field("initialized", stats.Initialized)
			a.writer.Field("db_path", a.dbPath())
			a.writer.Field("db_size_bytes", stats.DBSizeBytes)
			a.writer.Field("buffers", stats.BufferCount)
			a.writer.Field("chunks", stats.ChunkCount)
			a.writer.Field("content_bytes", stats.TotalContentBytes)
			a.writer.Field("embedded_chunks", stats.EmbeddingCount)
			a.writer.Field("schema_version", stats.SchemaVersion)

			return a.writer.JSON(output.Status{
				Initialized:       stats.Initialized,
				DBPath:            a.dbPath(),
				DBSizeBytes:       stats.DBSizeBytes,
				BufferCount:       stats.BufferCount,
				ChunkCount:        stats.ChunkCount,
				TotalContentBytes: stats.TotalContentBytes,
				EmbeddingsCount:   stats.EmbeddingCount,
				SchemaVersion:     stats.SchemaVersion,
			})
		},
	}
}
