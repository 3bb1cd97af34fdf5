package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/chunk"
	"github.com/rlmtools/rlm/internal/index"
)

func newWriteChunksCmd(a *app) *cobra.Command {
	var (
		outDir string
		prefix string
	)
	flags := &chunkFlags{}

	cmd := &cobra.Command{
		Use:   "write-chunks <buffer>",
		Short: "Write a buffer's chunks to files",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coord := index.NewCoordinator(s, nil)
			paths, err := coord.WriteChunks(ctx, args[0], outDir, prefix, flags.config(a))
			if err != nil {
				return a.renderError(err)
			}

			a.writer.Success("wrote %d chunk files to %s", len(paths), outDir)
			return a.writer.JSON(map[string]any{
				"count": len(paths),
				"files": paths,
			})
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", ".rlm/chunks", "Output directory")
	cmd.Flags().StringVar(&prefix, "prefix", "chunk", "Filename prefix")
	flags.register(cmd, chunk.DefaultConfig())
	return cmd
}
