package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/output"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all buffers",
		Args:    wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			buffers, err := s.ListBuffers(ctx)
			if err != nil {
				return a.renderError(err)
			}

			summaries := make([]output.BufferSummary, 0, len(buffers))
			a.writer.Line("%-6s %-24s %10s %8s %12s", "ID", "NAME", "SIZE", "CHUNKS", "CREATED")
			for _, buf := range buffers {
				a.writer.Line("%-6d %-24s %10d %8d %12d",
					buf.ID, buf.Name, buf.Size, buf.ChunkCount, buf.CreatedAt)
				summaries = append(summaries, output.BufferSummary{
					ID:         buf.ID,
					Name:       buf.Name,
					Size:       buf.Size,
					ChunkCount: buf.ChunkCount,
					CreatedAt:  buf.CreatedAt,
				})
			}
			if len(buffers) == 0 {
				a.writer.Dim("no buffers loaded")
			}

			return a.writer.JSON(map[string]any{
				"count":   len(summaries),
				"buffers": summaries,
			})
		},
	}
}
