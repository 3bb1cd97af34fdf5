package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rlmtools/rlm/internal/config"
	"github.com/rlmtools/rlm/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	var ann bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the database",
		Args:  wrapArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			path := a.dbPath()

			if force {
				for _, p := range []string{path, path + "-wal", path + "-shm",
					config.DenseIndexPath(path), config.DenseIndexPath(path) + ".meta"} {
					if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
						return a.renderError(err)
					}
				}
			}

			s, err := store.Open(path)
			if err != nil {
				return a.renderError(err)
			}
			defer s.Close()

			if err := s.Init(ctx, a.newEmbedder().ModelID()); err != nil {
				return a.renderError(err)
			}

			version, err := s.SchemaVersion(ctx)
			if err != nil {
				return a.renderError(err)
			}

			if ann {
				// Seed the HNSW sidecar; searches use it for dense scoring
				// and mutations keep it in sync.
				dims := a.newEmbedder().Dimensions()
				if err := rebuildDenseIndex(ctx, s, dims, config.DenseIndexPath(path)); err != nil {
					return a.renderError(err)
				}
			}

			a.writer.Success("initialized database at %s (schema v%d)", path, version)
			return a.writer.JSON(map[string]any{
				"initialized":    true,
				"db_path":        path,
				"schema_version": version,
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-initialize, destroying existing data")
	cmd.Flags().BoolVar(&ann, "ann", false, "Maintain an approximate-NN sidecar for dense search")
	return cmd
}
