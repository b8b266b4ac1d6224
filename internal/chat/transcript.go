package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// transcriptSchema is created on open. Cited documents are stored as a
// comma-joined id list; document ids are UUIDs and never contain commas.
const transcriptSchema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    kb_id           TEXT NOT NULL,
    question        TEXT NOT NULL,
    cited_documents TEXT NOT NULL DEFAULT '',
    asked_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_kb_asked
    ON transcripts (kb_id, asked_at);
`

// Transcript is one recorded question with the documents its retrieval
// cited.
type Transcript struct {
	ID             int64     `json:"id"`
	KnowledgeBase  string    `json:"knowledge_base_id"`
	Question       string    `json:"question"`
	CitedDocuments []string  `json:"cited_documents"`
	AskedAt        time.Time `json:"asked_at"`
}

// TranscriptStore records asked questions in SQLite. Retrieval itself is
// stateless per query; the transcript is an audit trail, not retrieval
// state.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore opens (creating if needed) the transcript database
// at the given path.
func NewTranscriptStore(path string) (*TranscriptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript database: %w", err)
	}
	if _, err := db.Exec(transcriptSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing transcript schema: %w", err)
	}
	return &TranscriptStore{db: db}, nil
}

// Record stores one asked question and its cited document ids.
func (t *TranscriptStore) Record(ctx context.Context, kbID, question string, citedDocs []string) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO transcripts (kb_id, question, cited_documents, asked_at) VALUES (?, ?, ?, ?)`,
		kbID, question, strings.Join(citedDocs, ","), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording transcript: %w", err)
	}
	return nil
}

// ListRecent returns the most recent transcripts for a knowledge base,
// newest first.
func (t *TranscriptStore) ListRecent(ctx context.Context, kbID string, limit int) ([]Transcript, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, kb_id, question, cited_documents, asked_at
		 FROM transcripts WHERE kb_id = ?
		 ORDER BY asked_at DESC, id DESC LIMIT ?`,
		kbID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Transcript
	for rows.Next() {
		var (
			tr    Transcript
			cited string
		)
		if err := rows.Scan(&tr.ID, &tr.KnowledgeBase, &tr.Question, &cited, &tr.AskedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript: %w", err)
		}
		if cited != "" {
			tr.CitedDocuments = strings.Split(cited, ",")
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcripts: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (t *TranscriptStore) Close() error {
	return t.db.Close()
}
