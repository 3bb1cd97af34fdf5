package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/index"
)

func newAddBufferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-buffer <name> [content]",
		Short: "Create a buffer from text (stdin when content is omitted)",
		Args:  wrapArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := contentArgOrStdin(cmd, args, 1)
			if err != nil {
				return a.renderError(err)
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coord := index.NewCoordinator(s, a.newEmbedder())
			res, err := coord.AddText(ctx, args[0], content)
			if err != nil {
				return a.renderError(err)
			}
			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}

			a.writer.Success("added buffer %q (id %d, %d chunks)", res.Buffer.Name, res.Buffer.ID, res.ChunkCount)
			return a.writer.JSON(map[string]any{
				"buffer_id":   res.Buffer.ID,
				"name":        res.Buffer.Name,
				"chunk_count": res.ChunkCount,
			})
		},
	}
	return cmd
}

func newUpdateBufferCmd(a *app) *cobra.Command {
	var reembed bool

	cmd := &cobra.Command{
		Use:   "update-buffer <buffer> [content]",
		Short: "Replace buffer content with diff-aware re-chunking",
		Args:  wrapArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := contentArgOrStdin(cmd, args, 1)
			if err != nil {
				return a.renderError(err)
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			coord := index.NewCoordinator(s, a.newEmbedder())
			res, err := coord.UpdateBuffer(ctx, args[0], content, reembed)
			if err != nil {
				return a.renderError(err)
			}
			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}

			a.writer.Success("updated buffer %q (%d chunks)", res.Buffer.Name, res.ChunkCount)
			if res.EmbeddingsPending {
				a.writer.Warning("embeddings pending; run 'rlm chunk embed %d'", res.Buffer.ID)
			}
			return a.writer.JSON(map[string]any{
				"buffer_id":          res.Buffer.ID,
				"chunk_count":        res.ChunkCount,
				"embeddings_pending": res.EmbeddingsPending,
			})
		},
	}

	cmd.Flags().BoolVar(&reembed, "embed", true, "Re-embed new or modified chunks")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <buffer>",
		Aliases: []string{"rm"},
		Short:   "Delete a buffer and everything it owns",
		Args:    wrapArgs(cobra.ExactArgs(1)),
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

			if !yes && !confirm(cmd, fmt.Sprintf("delete buffer %q (%d chunks)?", buf.Name, buf.ChunkCount)) {
				a.writer.Dim("aborted")
				return nil
			}

			if err := s.DeleteBuffer(ctx, buf.ID); err != nil {
				return a.renderError(err)
			}
			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}

			a.writer.Success("deleted buffer %q", buf.Name)
			return a.writer.JSON(map[string]any{
				"deleted":   true,
				"buffer_id": buf.ID,
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all data, keeping the schema",
		Args:  wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			if !yes && !confirm(cmd, "delete all buffers, chunks, embeddings, and variables?") {
				a.writer.Dim("aborted")
				return nil
			}

			if err := s.Reset(ctx); err != nil {
				return a.renderError(err)
			}
			if err := a.syncDenseIndex(ctx, s); err != nil {
				a.writer.Warning("dense index update failed: %v", err)
			}
			a.writer.Success("reset complete")
			return a.writer.JSON(map[string]any{"reset": true})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// contentArgOrStdin returns args[idx] when present, otherwise reads stdin.
func contentArgOrStdin(cmd *cobra.Command, args []string, idx int) (string, error) {
	if len(args) > idx {
		return args[idx], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// confirm prompts on stderr and reads a y/N answer from stdin.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
