package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/testutil"
)

func TestBuilder_BuildAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emb := &testutil.HashEmbedder{}
	b := NewBuilder(emb, log.NewNop())
	chunks := laneChunks()
	require.NoError(t, b.Build(context.Background(), dir, chunks))

	// Both artifacts exist under the target directory.
	_, err := os.Stat(filepath.Join(dir, LexicalArtifact))
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, VectorArtifact))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	lex, vec, err := Load(dir, emb)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), lex.Len())
	assert.Equal(t, len(chunks), vec.Len())
}

// A rebuilt in-memory index and a persisted-then-loaded index must agree
// on search results: the stored artifact is the index, never an
// approximation of it.
func TestBuilder_NoLoadTimeDrift(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	emb := &testutil.HashEmbedder{}
	b := NewBuilder(emb, log.NewNop())
	chunks := laneChunks()
	require.NoError(t, b.Build(context.Background(), dir, chunks))

	lex, vec, err := Load(dir, emb)
	require.NoError(t, err)

	fresh := NewLexical(chunks)
	for _, query := range []string{"redlands shelby", "carrier performance"} {
		assert.Equal(t, fresh.Search(query, 5), lex.Search(query, 5), query)

		q := testutil.HashVector(query)
		hits, err := vec.Search(context.Background(), q, 3)
		require.NoError(t, err)
		keys := make([]string, len(hits))
		for i, h := range hits {
			keys[i] = h.Key
		}
		again, err := vec.Search(context.Background(), q, 3)
		require.NoError(t, err)
		keysAgain := make([]string, len(again))
		for i, h := range again {
			keysAgain[i] = h.Key
		}
		assert.Equal(t, keys, keysAgain, query)
	}
}

func TestBuilder_EmptyChunks(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&testutil.HashEmbedder{}, log.NewNop())
	err := b.Build(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestLoad_MissingDir(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "nope"), &testutil.HashEmbedder{})
	assert.Error(t, err)
}

func TestBuilder_TabularAndProseMix(t *testing.T) {
	t.Parallel()

	chunks := append(laneChunks(), extract.Chunk{
		DocumentID: "doc-c", Seq: 0,
		Text: "Intermodal volumes declined in the southwest region.", TokenCount: 7,
	})
	dir := t.TempDir()
	emb := &testutil.HashEmbedder{}
	require.NoError(t, NewBuilder(emb, log.NewNop()).Build(context.Background(), dir, chunks))

	lex, _, err := Load(dir, emb)
	require.NoError(t, err)
	hits := lex.Search("intermodal southwest", 3)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc-c#0", hits[0].Key)
}
