package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/index"
	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/retriever"
	"github.com/lanekb/lanekb/internal/testutil"
)

// stubManager serves one preloaded retriever per knowledge base id.
type stubManager struct {
	retrievers map[string]*retriever.Retriever
}

func (s *stubManager) Retriever(_ context.Context, kbID string) (*retriever.Retriever, error) {
	r, ok := s.retrievers[kbID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kb.ErrIndexUnavailable, kbID)
	}
	return r, nil
}

func newStubManager(t *testing.T) *stubManager {
	t.Helper()
	chunks := []extract.Chunk{
		{DocumentID: "doc-a", Seq: 0, Text: "carrier,origin,destination\nODFL,REDLANDS,SHELBY", TokenCount: 6},
		{DocumentID: "doc-a", Seq: 1, Text: "carrier,origin,destination\nSAIA,FRESNO,DALLAS", TokenCount: 6},
		{DocumentID: "doc-b", Seq: 0, Text: "Quarterly summary of on-time performance.", TokenCount: 6},
	}
	dir := t.TempDir()
	emb := &testutil.HashEmbedder{}
	require.NoError(t, index.NewBuilder(emb, log.NewNop()).Build(context.Background(), dir, chunks))
	lex, vec, err := index.Load(dir, emb)
	require.NoError(t, err)
	return &stubManager{retrievers: map[string]*retriever.Retriever{
		"kb-ready": retriever.New(lex, vec, emb, retriever.Config{}, log.NewNop()),
	}}
}

func TestService_Ask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newStubManager(t), nil, log.NewNop())

	answer, err := svc.Ask(ctx, "kb-ready", "redlands to shelby", 2)
	require.NoError(t, err)
	assert.Equal(t, "kb-ready", answer.KnowledgeBaseID)
	assert.Equal(t, "redlands to shelby", answer.Question)
	assert.NotEmpty(t, answer.Chunks)
	assert.LessOrEqual(t, len(answer.Chunks), 2)
	assert.Equal(t, len(answer.Chunks), answer.Metadata.K)
	assert.False(t, answer.Metadata.Timestamp.IsZero())
}

func TestService_AskUnavailableKB(t *testing.T) {
	t.Parallel()

	svc := NewService(newStubManager(t), nil, log.NewNop())
	_, err := svc.Ask(context.Background(), "kb-missing", "anything", 3)
	require.Error(t, err)
	assert.Equal(t, kb.KindIndexUnavailable, kb.KindOf(err))
}

func TestService_ValidateReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newStubManager(t), nil, log.NewNop())
	assert.NoError(t, svc.ValidateReady(ctx, "kb-ready"))
	assert.Error(t, svc.ValidateReady(ctx, "kb-missing"))
}

func TestService_AskRecordsTranscript(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	transcripts, err := NewTranscriptStore(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = transcripts.Close() })

	svc := NewService(newStubManager(t), transcripts, log.NewNop())
	answer, err := svc.Ask(ctx, "kb-ready", "redlands to shelby", 3)
	require.NoError(t, err)

	recorded, err := svc.Transcripts(ctx, "kb-ready", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, "redlands to shelby", recorded[0].Question)

	// Cited documents are the distinct ids of the answer's chunks, in
	// ranked order.
	var wantDocs []string
	seen := map[string]struct{}{}
	for _, c := range answer.Chunks {
		if _, ok := seen[c.DocumentID]; !ok {
			seen[c.DocumentID] = struct{}{}
			wantDocs = append(wantDocs, c.DocumentID)
		}
	}
	assert.Equal(t, wantDocs, recorded[0].CitedDocuments)
}

func TestService_TranscriptsDisabled(t *testing.T) {
	t.Parallel()

	svc := NewService(newStubManager(t), nil, log.NewNop())
	got, err := svc.Transcripts(context.Background(), "kb-ready", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCitedDocuments(t *testing.T) {
	t.Parallel()

	chunks := []retriever.RankedChunk{
		{DocumentID: "doc-b"},
		{DocumentID: "doc-a"},
		{DocumentID: "doc-b"},
		{DocumentID: "doc-c"},
	}
	assert.Equal(t, []string{"doc-b", "doc-a", "doc-c"}, citedDocuments(chunks))
}
