package cmd

import (
	"context"
	"os"

	"github.com/rlmtools/rlm/internal/config"
	"github.com/rlmtools/rlm/internal/store"
)

// syncDenseIndex rebuilds the HNSW sidecar from stored embeddings when one
// exists on disk. The sidecar is optional; without it dense search scans
// vectors exactly.
func (a *app) syncDenseIndex(ctx context.Context, s *store.Store) error {
	path := config.DenseIndexPath(a.dbPath())
	if _, err := os.Stat(path + ".meta"); os.IsNotExist(err) {
		return nil
	}
	return rebuildDenseIndex(ctx, s, a.newEmbedder().Dimensions(), path)
}

// rebuildDenseIndex writes a fresh sidecar from every stored embedding.
func rebuildDenseIndex(ctx context.Context, s *store.Store, dimensions int, path string) error {
	ids, vectors, err := s.AllEmbeddings(ctx, 0)
	if err != nil {
		return err
	}
	idx := store.NewDenseIndex(dimensions)
	if len(ids) > 0 {
		if err := idx.Add(ids, vectors); err != nil {
			return err
		}
	}
	return idx.Save(path)
}

// loadDenseIndex opens the sidecar when present; nil otherwise.
func (a *app) loadDenseIndex() *store.DenseIndex {
	idx, err := store.LoadDenseIndex(config.DenseIndexPath(a.dbPath()))
	if err != nil {
		return nil
	}
	return idx
}
