package store

// CurrentSchemaVersion is the current database schema version.
//
// Version history:
//
//	v1: buffers, chunks, variables, globals, schema_info
//	v2: chunk_embeddings, chunks_fts (FTS5 external content) with sync triggers
//	v3: embedder model identity tracking; a model change clears embeddings
const CurrentSchemaVersion = 3

// stateKeyEmbedderModel stores the model identity the embeddings were
// generated with. Compared on open; a mismatch clears chunk_embeddings.
const stateKeyEmbedderModel = "embedder_model"

// schemaSQL creates the full schema at the current version.
const schemaSQL = `
-- Schema version and runtime state
CREATE TABLE IF NOT EXISTS schema_info (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- Buffers (named immutable documents)
CREATE TABLE IF NOT EXISTS buffers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	source_path TEXT,
	content_type TEXT,
	content_hash TEXT,
	size INTEGER NOT NULL,
	line_count INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buffers_hash ON buffers(content_hash);

-- Chunks (ordered slices of buffer content)
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	buffer_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	byte_start INTEGER NOT NULL,
	byte_end INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	token_count INTEGER,
	has_overlap INTEGER NOT NULL DEFAULT 0,
	strategy TEXT,
	content_hash TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (buffer_id) REFERENCES buffers(id) ON DELETE CASCADE,
	UNIQUE (buffer_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_buffer ON chunks(buffer_id);

-- Context-scoped variables
CREATE TABLE IF NOT EXISTS variables (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	value_type TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Globally-scoped variables
CREATE TABLE IF NOT EXISTS globals (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	value_type TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Dense embeddings, 1:1 with chunks (v2)
CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	model_id TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
);

-- FTS5 index over chunk content for BM25 scoring (v2)
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	content='chunks',
	content_rowid='id',
	tokenize='porter unicode61'
);

-- Keep the FTS index in sync with the chunks table
CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES (new.id, new.content);
END;
`

// migration upgrades the schema from Version-1 to Version.
type migration struct {
	Version int
	SQL     string
}

// migrationV2 adds embeddings and the FTS5 index.
const migrationV2 = `
CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	model_id TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	content='chunks',
	content_rowid='id',
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES (new.id, new.content);
END;

INSERT INTO chunks_fts(rowid, content) SELECT id, content FROM chunks;
`

// migrationV3 is a no-op at the SQL level; v3 introduces model identity
// tracking, enforced in code on every open (see Store.checkModelIdentity).
const migrationV3 = ``

// migrations lists schema upgrades in order. Each is idempotent.
var migrations = []migration{
	{Version: 2, SQL: migrationV2},
	{Version: 3, SQL: migrationV3},
}
