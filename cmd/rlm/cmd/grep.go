package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/index"
)

func newGrepCmd(a *app) *cobra.Command {
	var (
		maxMatches int
		window     int
		ignoreCase bool
	)

	cmd := &cobra.Command{
		Use:   "grep <buffer> <pattern>",
		Short: "Search buffer content with a regex",
		Args:  wrapArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coord := index.NewCoordinator(s, nil)
			matches, buf, err := coord.Grep(ctx, args[0], args[1], maxMatches, window, ignoreCase)
			if err != nil {
				return a.renderError(err)
			}

			type matchDoc struct {
				Start   int    `json:"start"`
				End     int    `json:"end"`
				Line    int    `json:"line"`
				Match   string `json:"match"`
				Context string `json:"context"`
			}
			docs := make([]matchDoc, 0, len(matches))
			for _, m := range matches {
				a.writer.Line("%d:%d %s", m.Line, m.Start, m.Context)
				docs = append(docs, matchDoc{
					Start: m.Start, End: m.End, Line: m.Line,
					Match: m.Match, Context: m.Context,
				})
			}
			if len(matches) == 0 {
				a.writer.Dim("no matches")
			}

			return a.writer.JSON(map[string]any{
				"buffer_id": buf.ID,
				"pattern":   args[1],
				"count":     len(docs),
				"matches":   docs,
			})
		},
	}

	cmd.Flags().IntVarP(&maxMatches, "max-matches", "n", 20, "Maximum number of matches")
	cmd.Flags().IntVarP(&window, "window", "w", 120, "Context bytes around each match")
	cmd.Flags().BoolVarP(&ignoreCase, "ignore-case", "i", false, "Case-insensitive matching")
	return cmd
}
