package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against the given database path and returns stdout.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--db", dbPath}, args...))
	err := root.Execute()
	return out.String(), err
}

// runJSON executes with --format json and decodes the single output object.
func runJSON(t *testing.T, dbPath string, args ...string) map[string]any {
	t.Helper()
	out, err := run(t, dbPath, append(args, "--format", "json")...)
	require.NoError(t, err, out)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	return doc
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "rlm-state.db")
}

func TestInitAndStatus(t *testing.T) {
	db := testDB(t)

	doc := runJSON(t, db, "init")
	assert.Equal(t, true, doc["initialized"])

	status := runJSON(t, db, "status")
	assert.Equal(t, true, status["initialized"])
	assert.EqualValues(t, 0, status["buffer_count"])
	assert.EqualValues(t, 3, status["schema_version"])
	assert.Equal(t, db, status["db_path"])
}

func TestStatus_Uninitialized(t *testing.T) {
	db := testDB(t)
	status := runJSON(t, db, "status")
	assert.Equal(t, false, status["initialized"])
}

func TestLoad_FixedScenario(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o644))

	doc := runJSON(t, db, "load", path,
		"--chunker", "fixed", "--chunk-size", "4", "--overlap", "1")
	assert.EqualValues(t, 3, doc["chunk_count"])
	assert.Equal(t, false, doc["embeddings_pending"])

	// Chunk listing reflects the expected byte ranges.
	list := runJSON(t, db, "chunk", "list", "doc.txt")
	chunks := list["chunks"].([]any)
	require.Len(t, chunks, 3)
	first := chunks[0].(map[string]any)
	assert.Equal(t, []any{float64(0), float64(4)}, first["byte_range"].([]any))
	assert.Equal(t, true, first["has_embedding"])

	// Dereference round-trips the content.
	id := int64(first["id"].(float64))
	got := runJSON(t, db, "chunk", "get", strconv.FormatInt(id, 10))
	assert.Equal(t, "abcd", got["content"])
}

func TestLoad_UnknownChunker(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	_, err = run(t, db, "load", path, "--chunker", "recursive")
	assert.Error(t, err)
}

func TestAddBufferSearchDelete(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	runJSON(t, db, "add-buffer", "facts", "the quick brown fox jumps over the lazy dog")
	runJSON(t, db, "add-buffer", "other", "machine learning is a subset of artificial intelligence")

	resp := runJSON(t, db, "search", "fox", "--mode", "bm25")
	assert.Equal(t, "fox", resp["query"])
	assert.EqualValues(t, 1, resp["count"])
	results := resp["results"].([]any)
	first := results[0].(map[string]any)
	assert.NotNil(t, first["bm25_score"])

	hybrid := runJSON(t, db, "search", "fox")
	assert.EqualValues(t, "hybrid", hybrid["mode"])
	assert.NotZero(t, hybrid["count"])

	del := runJSON(t, db, "delete", "facts", "--yes")
	assert.Equal(t, true, del["deleted"])

	after := runJSON(t, db, "search", "fox", "--mode", "bm25")
	assert.EqualValues(t, 0, after["count"])
}

func TestSearch_InvalidMode(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	_, err = run(t, db, "search", "q", "--mode", "cosine")
	require.Error(t, err)
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
}

func TestVarAndGlobal(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	set := runJSON(t, db, "var", "depth", "3")
	assert.Equal(t, "int", set["type"])

	get := runJSON(t, db, "var", "depth")
	assert.EqualValues(t, 3, get["value"])

	// Scopes are independent.
	_, err = run(t, db, "global", "depth")
	assert.Error(t, err)

	deleted := runJSON(t, db, "var", "depth", "--delete")
	assert.Equal(t, true, deleted["deleted"])
}

func TestErrorEnvelope_JSON(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)

	out, err := run(t, db, "show", "missing", "--format", "json")
	require.Error(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	assert.Equal(t, false, env["success"])
	errDoc := env["error"].(map[string]any)
	assert.Equal(t, "BufferNotFound", errDoc["type"])
}

func TestNotInitialized(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestUnknownFormat(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "status", "--format", "xml")
	require.Error(t, err)
	var usage *usageError
	assert.ErrorAs(t, err, &usage)
}

func TestExportBuffers(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)
	runJSON(t, db, "add-buffer", "exp", "exported content")

	out, err := run(t, db, "export-buffers", "--pretty")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.EqualValues(t, 1, doc["count"])
	buffers := doc["buffers"].([]any)
	first := buffers[0].(map[string]any)
	assert.Equal(t, "exported content", first["content"])
}

func TestReset(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)
	runJSON(t, db, "add-buffer", "gone", "soon to be wiped")

	doc := runJSON(t, db, "reset", "--yes")
	assert.Equal(t, true, doc["reset"])

	status := runJSON(t, db, "status")
	assert.EqualValues(t, 0, status["buffer_count"])
}

func TestChunkStatusAndEmbed(t *testing.T) {
	db := testDB(t)
	_, err := run(t, db, "init")
	require.NoError(t, err)
	runJSON(t, db, "add-buffer", "cov", "content to be embedded right away")

	status := runJSON(t, db, "chunk", "status")
	buffers := status["buffers"].([]any)
	require.Len(t, buffers, 1)
	row := buffers[0].(map[string]any)
	assert.Equal(t, row["chunks"], row["embedded"])

	embed := runJSON(t, db, "chunk", "embed", "cov", "--force")
	assert.EqualValues(t, 1, embed["embedded"])
}

func TestInitWithANNSidecar(t *testing.T) {
	db := testDB(t)
	runJSON(t, db, "init", "--ann")

	// The sidecar exists and stays in sync through mutations.
	_, err := os.Stat(db + ".hnsw.meta")
	require.NoError(t, err)

	runJSON(t, db, "add-buffer", "annbuf", "the quick brown fox jumps over the lazy dog")

	resp := runJSON(t, db, "search", "quick fox", "--mode", "semantic")
	assert.NotZero(t, resp["count"])
}
