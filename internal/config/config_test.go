package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDBPath_Priority(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	assert.Equal(t, DefaultDBPath, ResolveDBPath(""))

	t.Setenv(EnvDBPath, "/env/state.db")
	assert.Equal(t, "/env/state.db", ResolveDBPath(""))

	// Explicit flag beats the environment.
	assert.Equal(t, "/flag/state.db", ResolveDBPath("/flag/state.db"))
}

func TestDenseIndexPath(t *testing.T) {
	assert.Equal(t, ".rlm/rlm-state.db.hnsw", DenseIndexPath(".rlm/rlm-state.db"))
}

func TestLoadSettings_Missing(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Zero(t, s.Chunking.ChunkSize)
}

func TestLoadSettings_Parses(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".rlm"), 0o755))
	content := "chunking:\n  chunk_size: 1234\n  strategy: fixed\nsearch:\n  rrf_constant: 30\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, settingsFile), []byte(content), 0o644))

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 1234, s.Chunking.ChunkSize)
	assert.Equal(t, "fixed", s.Chunking.Strategy)
	assert.Equal(t, 30, s.Search.RRFConstant)
}
