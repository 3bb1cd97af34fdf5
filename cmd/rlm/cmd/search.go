package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	rlmerr "github.com/rlmtools/rlm/internal/errors"
	"github.com/rlmtools/rlm/internal/output"
	"github.com/rlmtools/rlm/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		topK      int
		threshold float32
		mode      string
		rrfK      int
		buffer    string
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Hybrid search over indexed chunks",
		Args:  wrapArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			searchMode := search.Mode(mode)
			if !searchMode.Valid() {
				return &usageError{rlmerr.Newf(rlmerr.ErrCodeInvalidInput,
					"unknown search mode: %s (expected hybrid, semantic, or bm25)", mode)}
			}

			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			opts := search.Options{
				TopK:      topK,
				Threshold: threshold,
				Mode:      searchMode,
				RRFK:      rrfK,
			}
			if a.settings.Search.TopK > 0 && topK == search.DefaultTopK {
				opts.TopK = a.settings.Search.TopK
			}
			if a.settings.Search.RRFConstant > 0 && rrfK == search.DefaultRRFK {
				opts.RRFK = a.settings.Search.RRFConstant
			}
			if a.settings.Search.Threshold > 0 && threshold == 0 {
				opts.Threshold = a.settings.Search.Threshold
			}
			if buffer != "" {
				buf, err := s.ResolveBuffer(ctx, buffer)
				if err != nil {
					return a.renderError(err)
				}
				opts.BufferID = buf.ID
			}

			engine, err := search.NewEngine(s, a.newEmbedder(), a.loadDenseIndex())
			if err != nil {
				return a.renderError(err)
			}
			results, err := engine.Search(ctx, query, opts)
			if err != nil {
				return a.renderError(err)
			}

			docs := make([]output.SearchResult, 0, len(results))
			a.writer.Line("%-8s %-8s %-6s %-12s %-12s %s",
				"CHUNK", "BUFFER", "INDEX", "SCORE", "SEMANTIC", "BM25")
			for _, r := range results {
				semantic, bm25 := "-", "-"
				if r.SemanticScore != nil {
					semantic = output.FormatScore(float64(*r.SemanticScore))
				}
				if r.BM25Score != nil {
					bm25 = output.FormatScore(*r.BM25Score)
				}
				a.writer.Line("%-8d %-8d %-6d %-12s %-12s %s",
					r.ChunkID, r.BufferID, r.Index, output.FormatScore(r.Score), semantic, bm25)

				docs = append(docs, output.SearchResult{
					ChunkID:       r.ChunkID,
					BufferID:      r.BufferID,
					Index:         r.Index,
					Score:         r.Score,
					SemanticScore: r.SemanticScore,
					BM25Score:     r.BM25Score,
				})
			}
			if len(results) == 0 {
				a.writer.Dim("no results")
			}

			return a.writer.JSON(output.SearchResponse{
				Query:   query,
				Mode:    mode,
				Count:   len(docs),
				Results: docs,
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", search.DefaultTopK, "Maximum number of results")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum semantic similarity (0 disables)")
	cmd.Flags().StringVar(&mode, "mode", string(search.ModeHybrid), "Search mode (hybrid, semantic, bm25)")
	cmd.Flags().IntVar(&rrfK, "rrf-k", search.DefaultRRFK, "RRF smoothing constant")
	cmd.Flags().StringVar(&buffer, "buffer", "", "Restrict to one buffer (id or name)")
	return cmd
}
