package output

// Stable JSON shapes emitted by the command surface. Every command produces
// exactly one object; lists live under typed keys.

// SearchResult is one hit in a SearchResponse.
type SearchResult struct {
	ChunkID       int64    `json:"chunk_id"`
	BufferID      int64    `json:"buffer_id"`
	Index         int      `json:"index"`
	Score         float64  `json:"score"`
	SemanticScore *float32 `json:"semantic_score,omitempty"`
	BM25Score     *float64 `json:"bm25_score,omitempty"`
}

// SearchResponse is the `search` command document.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// Status is the `status` command document.
type Status struct {
	Initialized       bool   `json:"initialized"`
	DBPath            string `json:"db_path"`
	DBSizeBytes       int64  `json:"db_size_bytes"`
	BufferCount       int    `json:"buffer_count"`
	ChunkCount        int    `json:"chunk_count"`
	TotalContentBytes int    `json:"total_content_bytes"`
	EmbeddingsCount   int    `json:"embeddings_count"`
	SchemaVersion     int    `json:"schema_version"`
}

// Chunk is the `chunk get` / `chunk list` element document.
type Chunk struct {
	ID           int64  `json:"id"`
	BufferID     int64  `json:"buffer_id"`
	Index        int    `json:"index"`
	ByteRange    [2]int `json:"byte_range"`
	Size         int    `json:"size"`
	Content      string `json:"content"`
	HasEmbedding bool   `json:"has_embedding"`
	Strategy     string `json:"strategy,omitempty"`
	TokenCount   int    `json:"token_count,omitempty"`
}

// BufferSummary is a `list` row.
type BufferSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Size       int    `json:"size"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  int64  `json:"created_at"`
}

// BufferDetail is the `show` document.
type BufferDetail struct {
	BufferSummary
	Source      string  `json:"source,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Hash        string  `json:"hash"`
	LineCount   int     `json:"line_count"`
	UpdatedAt   int64   `json:"updated_at"`
	Chunks      []Chunk `json:"chunks,omitempty"`
}

// ErrorDetail is the payload of an ErrorEnvelope.
type ErrorDetail struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ErrorEnvelope is the JSON failure document.
type ErrorEnvelope struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// NewErrorEnvelope builds a failure document.
func NewErrorEnvelope(kind, message, suggestion string) ErrorEnvelope {
	return ErrorEnvelope{
		Success: false,
		Error: ErrorDetail{
			Type:       kind,
			Message:    message,
			Suggestion: suggestion,
		},
	}
}
