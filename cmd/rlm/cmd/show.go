package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/output"
)

func newShowCmd(a *app) *cobra.Command {
	var withChunks bool

	cmd := &cobra.Command{
		Use:   "show <buffer>",
		Short: "Show buffer details by id or name",
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

			detail := output.BufferDetail{
				BufferSummary: output.BufferSummary{
					ID:         buf.ID,
					Name:       buf.Name,
					Size:       buf.Size,
					ChunkCount: buf.ChunkCount,
					CreatedAt:  buf.CreatedAt,
				},
				Source:      buf.Source,
				ContentType: buf.ContentType,
				Hash:        buf.Hash,
				LineCount:   buf.LineCount,
				UpdatedAt:   buf.UpdatedAt,
			}

			a.writer.Header(buf.Name)
			a.writer.Field("id", buf.ID)
			a.writer.Field("size", buf.Size)
			a.writer.Field("lines", buf.LineCount)
			a.writer.Field("chunks", buf.ChunkCount)
			a.writer.Field("hash", buf.Hash)
			if buf.Source != "" {
				a.writer.Field("source", buf.Source)
			}
			if buf.ContentType != "" {
				a.writer.Field("content_type", buf.ContentType)
			}

			if withChunks {
				chunks, err := s.GetChunksByBuffer(ctx, buf.ID)
				if err != nil {
					return a.renderError(err)
				}
				a.writer.Line("")
				a.writer.Line("%-8s %-6s %-14s %-10s %s", "CHUNK", "INDEX", "RANGE", "STRATEGY", "SIZE")
				for _, c := range chunks {
					a.writer.Line("%-8d %-6d [%d,%d) %-10s %d",
						c.ID, c.Index, c.Start, c.End, c.Strategy, c.Size())
					doc, err := chunkToDoc(ctx, s, &c, false)
					if err != nil {
						return a.renderError(err)
					}
					detail.Chunks = append(detail.Chunks, doc)
				}
			}

			return a.writer.JSON(detail)
		},
	}

	cmd.Flags().BoolVar(&withChunks, "chunks", false, "Include the chunk listing")
	return cmd
}
