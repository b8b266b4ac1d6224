package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTranscripts(t *testing.T) *TranscriptStore {
	t.Helper()
	store, err := NewTranscriptStore(filepath.Join(t.TempDir(), "transcripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestTranscriptStore_RecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestTranscripts(t)

	require.NoError(t, store.Record(ctx, "kb-1", "redlands to shelby performance", []string{"doc-a", "doc-b"}))
	require.NoError(t, store.Record(ctx, "kb-1", "fresno volumes", nil))
	require.NoError(t, store.Record(ctx, "kb-2", "unrelated", []string{"doc-z"}))

	got, err := store.ListRecent(ctx, "kb-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2, "only the requested knowledge base's transcripts")

	// Newest first.
	assert.Equal(t, "fresno volumes", got[0].Question)
	assert.Empty(t, got[0].CitedDocuments)
	assert.Equal(t, "redlands to shelby performance", got[1].Question)
	assert.Equal(t, []string{"doc-a", "doc-b"}, got[1].CitedDocuments)
	assert.Equal(t, "kb-1", got[1].KnowledgeBase)
	assert.False(t, got[1].AskedAt.IsZero())
}

func TestTranscriptStore_ListLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestTranscripts(t)
	for i := 0; i < 8; i++ {
		require.NoError(t, store.Record(ctx, "kb-1", fmt.Sprintf("question %d", i), nil))
	}

	got, err := store.ListRecent(ctx, "kb-1", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	all, err := store.ListRecent(ctx, "kb-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 8, "non-positive limit falls back to the default")
}

func TestTranscriptStore_EmptyKB(t *testing.T) {
	t.Parallel()

	store := newTestTranscripts(t)
	got, err := store.ListRecent(context.Background(), "never-asked", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
