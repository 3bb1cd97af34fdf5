// Command rlm is a local content-indexing and retrieval engine: it ingests
// text documents into chunked buffers backed by SQLite and answers hybrid
// (dense + BM25) retrieval queries.
package main

import (
	"os"

	"github.com/rlmtools/rlm/cmd/rlm/cmd"
	"github.com/rlmtools/rlm/internal/config"
)

func main() {
	config.LoadEnv()
	os.Exit(cmd.Execute())
}
