package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

func newExportBuffersCmd(a *app) *cobra.Command {
	var (
		outputPath string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "export-buffers",
		Short: "Export all buffers as a structured document",
		Args:  wrapArgs(cobra.NoArgs),
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

			type bufferDoc struct {
				ID          int64  `json:"id"`
				Name        string `json:"name"`
				Content     string `json:"content"`
				Source      string `json:"source,omitempty"`
				ContentType string `json:"content_type,omitempty"`
				Hash        string `json:"hash"`
				Size        int    `json:"size"`
				LineCount   int    `json:"line_count"`
				ChunkCount  int    `json:"chunk_count"`
				CreatedAt   int64  `json:"created_at"`
				UpdatedAt   int64  `json:"updated_at"`
			}

			docs := make([]bufferDoc, 0, len(buffers))
			for _, meta := range buffers {
				// The listing omits content; fetch each full record.
				buf, err := s.GetBuffer(ctx, meta.ID)
				if err != nil {
					return a.renderError(err)
				}
				docs = append(docs, bufferDoc{
					ID: buf.ID, Name: buf.Name, Content: buf.Content,
					Source: buf.Source, ContentType: buf.ContentType,
					Hash: buf.Hash, Size: buf.Size, LineCount: buf.LineCount,
					ChunkCount: buf.ChunkCount,
					CreatedAt:  buf.CreatedAt, UpdatedAt: buf.UpdatedAt,
				})
			}

			document := map[string]any{
				"count":   len(docs),
				"buffers": docs,
			}

			var data []byte
			if pretty {
				data, err = json.MarshalIndent(document, "", "  ")
			} else {
				data, err = json.Marshal(document)
			}
			if err != nil {
				return a.renderError(err)
			}
			data = append(data, '\n')

			if outputPath != "" {
				if err := os.WriteFile(outputPath, data, 0o644); err != nil {
					return a.renderError(rlmerr.Wrap(rlmerr.ErrCodeFileWrite, err))
				}
				a.writer.Success("exported %d buffers to %s", len(docs), outputPath)
				return a.writer.JSON(map[string]any{
					"exported": len(docs),
					"output":   outputPath,
				})
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (stdout when omitted)")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Indent the JSON output")
	return cmd
}
