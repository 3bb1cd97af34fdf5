// Package store provides the persistence layer: a SQLite database holding
// buffers, chunks, dense embeddings, an FTS5 BM25 index, and scoped
// variables, plus an optional HNSW sidecar for approximate dense search.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	rlmerr "github.com/rlmtools/rlm/internal/errors"
)

// Store is the SQLite-backed persistence layer. All writes serialize behind
// a single mutex held only for the duration of a transaction; parallel
// chunking and embedding run outside the gate.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string // empty for in-memory
	lock *flock.Flock
}

// Open opens or creates the database at path and acquires a sibling lock
// file guarding against concurrent writers from other processes.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeFileWrite, err)
	}

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = fileLock.Unlock()
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}

	s := &Store{db: db, path: path, lock: fileLock}
	if err := s.configure(); err != nil {
		_ = db.Close()
		_ = fileLock.Unlock()
		return nil, err
	}
	return s, nil
}

// OpenInMemory creates an in-memory database, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// configure applies connection pragmas. A single connection avoids SQLite
// lock contention across the pool.
func (s *Store) configure() error {
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)
	s.db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
	}
	return nil
}

// Path returns the database file path (empty for in-memory).
func (s *Store) Path() string { return s.path }

// Close releases the database handle and the process lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		err = s.db.Close()
		s.db = nil
	}
	if s.lock != nil {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
		s.lock = nil
	}
	return err
}

// Init creates the schema at the current version, or migrates an older
// database. modelID is the active embedder identity used by the v3 check.
func (s *Store) Init(ctx context.Context, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	initialized, err := s.initialized(ctx)
	if err != nil {
		return err
	}

	if !initialized {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return rlmerr.Wrap(rlmerr.ErrCodeMigration, err)
		}
		if err := s.setSchemaVersion(ctx, CurrentSchemaVersion); err != nil {
			return err
		}
		return s.setState(ctx, stateKeyEmbedderModel, modelID)
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.Version <= version {
			continue
		}
		if m.SQL != "" {
			if _, err := s.db.ExecContext(ctx, m.SQL); err != nil {
				return rlmerr.Newf(rlmerr.ErrCodeMigration, "migration to v%d failed: %v", m.Version, err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.Version); err != nil {
			return err
		}
		slog.Info("schema migrated", slog.Int("version", m.Version))
	}

	return s.checkModelIdentity(ctx, modelID)
}

// checkModelIdentity compares the stored embedder identity against the
// active one; on mismatch all embeddings are cleared (chunks and the FTS
// index stay intact) and the new identity is recorded.
func (s *Store) checkModelIdentity(ctx context.Context, modelID string) error {
	stored, err := s.getState(ctx, stateKeyEmbedderModel)
	if err != nil {
		return err
	}
	if stored == modelID {
		return nil
	}
	if stored != "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM chunk_embeddings"); err != nil {
			return rlmerr.Wrap(rlmerr.ErrCodeMigration, err)
		}
		slog.Warn("embedder model changed, embeddings cleared",
			slog.String("previous", stored),
			slog.String("current", modelID))
	}
	return s.setState(ctx, stateKeyEmbedderModel, modelID)
}

// Initialized reports whether the schema exists.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized(ctx)
}

func (s *Store) initialized(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_info'`).Scan(&count)
	if err != nil {
		return false, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return count > 0, nil
}

// requireInit returns NotInitialized when the schema is missing.
func (s *Store) requireInit(ctx context.Context) error {
	ok, err := s.initialized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return rlmerr.NotInitialized()
	}
	return nil
}

// SchemaVersion returns the stored schema version (0 when uninitialized).
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.initialized(ctx)
	if err != nil || !ok {
		return 0, err
	}
	return s.schemaVersion(ctx)
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST(value AS INTEGER) FROM schema_info WHERE key = 'version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeMigration, err)
	}
	return nil
}

func (s *Store) getState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM schema_info WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return value, nil
}

func (s *Store) setState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_info (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return nil
}

// Reset deletes all data, keeping the schema.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireInit(ctx); err != nil {
		return err
	}
	stmts := []string{
		"DELETE FROM chunk_embeddings",
		"DELETE FROM chunks",
		"DELETE FROM buffers",
		"DELETE FROM variables",
		"DELETE FROM globals",
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return rlmerr.Wrap(rlmerr.ErrCodeTransaction, err)
	}
	return nil
}

// now returns the current Unix timestamp in seconds.
func now() int64 {
	return time.Now().Unix()
}
