package kb

import "time"

// Status is the lifecycle state of a KnowledgeBase.
//
// Transitions:
//
//	created ──upload──▶ documents_added ──process──▶ processing ──▶ ready
//	                         ▲                           │
//	                         │ upload (index now stale)  ▼
//	ready ───────────────────┘                         error
//
// ready is reachable only after a successful processing run over a
// non-empty corpus.
type Status string

const (
	// StatusCreated is the state of a freshly created knowledge base
	// with no documents.
	StatusCreated Status = "created"

	// StatusDocumentsAdded means at least one document has been uploaded
	// since creation or since the last completed processing run.
	StatusDocumentsAdded Status = "documents_added"

	// StatusProcessing means a processing run is in flight.
	StatusProcessing Status = "processing"

	// StatusReady means both index artifacts are durably written and match
	// the current document set.
	StatusReady Status = "ready"

	// StatusError means the last processing run failed. The error message
	// is stored on the knowledge base record.
	StatusError Status = "error"
)

// KnowledgeBase is a named, independently-indexed collection of documents.
type KnowledgeBase struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Status        Status         `json:"status"`
	DocumentCount int            `json:"document_count"`
	DocumentTypes map[string]int `json:"document_types"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Document is an uploaded source file. A Document belongs to exactly one
// KnowledgeBase for its lifetime.
type Document struct {
	ID               string    `json:"id"`
	KnowledgeBaseID  string    `json:"knowledge_base_id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// ProcessResult summarizes one processing run.
type ProcessResult struct {
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsFailed    []string      `json:"documents_failed,omitempty"`
	ChunkCount         int           `json:"chunk_count"`
	Duration           time.Duration `json:"duration"`
}

// Metadata is the persisted per-KB record stored as metadata.json inside
// the knowledge base directory. Every state transition is written back to
// this record before the mutating call returns, so a crash between two
// calls leaves status consistent with the last completed step.
type Metadata struct {
	KB               KnowledgeBase `json:"knowledge_base"`
	Documents        []Document    `json:"documents"`
	IndexFingerprint string        `json:"index_fingerprint,omitempty"`
	IndexBuiltAt     time.Time     `json:"index_built_at,omitzero"`
}
