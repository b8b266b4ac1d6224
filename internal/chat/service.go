// Package chat implements the question-answering service over the
// knowledge base engine: stateless request/response asks and the
// per-session message types used by the streaming transport. Answer
// synthesis is a downstream concern; this service returns retrieved
// context with source citations.
package chat

import (
	"context"
	"time"

	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/retriever"
)

// Manager is the slice of the knowledge base manager the chat service
// consumes.
type Manager interface {
	Retriever(ctx context.Context, kbID string) (*retriever.Retriever, error)
}

// Answer is the result of one retrieval: the ranked context chunks plus
// citation metadata.
type Answer struct {
	KnowledgeBaseID string                  `json:"knowledge_base_id"`
	Question        string                  `json:"question"`
	Chunks          []retriever.RankedChunk `json:"retrieved_chunks"`
	Metadata        AnswerMetadata          `json:"metadata"`
}

// AnswerMetadata describes how the answer was produced.
type AnswerMetadata struct {
	K          int       `json:"k"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Query is one inbound question on a streaming session.
type Query struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// Event is one outbound message on a streaming session: either an answer
// or a structured error, tagged with a timestamp.
type Event struct {
	Answer    *Answer   `json:"answer,omitempty"`
	Error     *Fault    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Fault is a structured error payload: a stable kind plus a
// human-readable message.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Service answers questions against ready knowledge bases. Stateless per
// query: sessions are a transport concern only.
type Service struct {
	manager     Manager
	transcripts *TranscriptStore
	logger      log.Logger
}

// NewService creates a chat service. transcripts may be nil to disable
// transcript recording.
func NewService(manager Manager, transcripts *TranscriptStore, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{manager: manager, transcripts: transcripts, logger: logger}
}

// ValidateReady reports whether the knowledge base can serve queries.
// Streaming sessions call this before accepting the first question.
func (s *Service) ValidateReady(ctx context.Context, kbID string) error {
	_, err := s.manager.Retriever(ctx, kbID)
	return err
}

// Ask runs one retrieval. k <= 0 uses the retriever default.
func (s *Service) Ask(ctx context.Context, kbID, question string, k int) (*Answer, error) {
	r, err := s.manager.Retriever(ctx, kbID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks, err := r.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		KnowledgeBaseID: kbID,
		Question:        question,
		Chunks:          chunks,
		Metadata: AnswerMetadata{
			K:          len(chunks),
			DurationMS: time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		},
	}

	if s.transcripts != nil {
		if err := s.transcripts.Record(ctx, kbID, question, citedDocuments(chunks)); err != nil {
			// Transcript recording must not fail the answer.
			s.logger.Warn("failed to record transcript", "kb_id", kbID, "error", err)
		}
	}
	return answer, nil
}

// Transcripts returns recent transcripts for a knowledge base. Returns
// an empty slice when recording is disabled.
func (s *Service) Transcripts(ctx context.Context, kbID string, limit int) ([]Transcript, error) {
	if s.transcripts == nil {
		return nil, nil
	}
	return s.transcripts.ListRecent(ctx, kbID, limit)
}

// citedDocuments returns the distinct document ids in ranked order.
func citedDocuments(chunks []retriever.RankedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	var ids []string
	for _, c := range chunks {
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		ids = append(ids, c.DocumentID)
	}
	return ids
}
