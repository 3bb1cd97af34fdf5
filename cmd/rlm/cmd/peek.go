package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/index"
)

func newPeekCmd(a *app) *cobra.Command {
	var start, end int

	cmd := &cobra.Command{
		Use:   "peek <buffer>",
		Short: "Print a byte range of a buffer, snapped to UTF-8 boundaries",
		Args:  wrapArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coord := index.NewCoordinator(s, nil)
			text, buf, err := coord.Peek(ctx, args[0], start, end)
			if err != nil {
				return a.renderError(err)
			}

			a.writer.Line("%s", text)
			return a.writer.JSON(map[string]any{
				"buffer_id": buf.ID,
				"start":     start,
				"length":    len(text),
				"content":   text,
			})
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "Start byte offset")
	cmd.Flags().IntVar(&end, "end", 0, "End byte offset (default: start + 3000)")
	return cmd
}
