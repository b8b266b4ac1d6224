package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/index"
	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/testutil"
)

// laneCorpus builds a corpus of structured lane rows where many rows are
// near-duplicates of each other, plus one prose document. The REDLANDS to
// SHELBY row is the needle: a pure vector search over near-identical rows
// is exactly the case reformulation exists to rescue.
func laneCorpus() []extract.Chunk {
	header := "carrier,origin,destination,otp_score"
	var chunks []extract.Chunk
	cities := []string{"FRESNO", "DALLAS", "TULSA", "MEMPHIS", "PHOENIX", "BOISE", "RENO", "OMAHA"}
	seq := 0
	for i, origin := range cities {
		for j, dest := range cities {
			if i == j {
				continue
			}
			chunks = append(chunks, extract.Chunk{
				DocumentID: "lanes-q2",
				Seq:        seq,
				Text:       fmt.Sprintf("%s\nODFL,%s,%s,%d.%d", header, origin, dest, 60+i, j),
				TokenCount: 8,
			})
			seq++
		}
	}
	chunks = append(chunks, extract.Chunk{
		DocumentID: "lanes-q2",
		Seq:        seq,
		Text:       header + "\nODFL,REDLANDS,SHELBY,82.9",
		TokenCount: 8,
	})
	chunks = append(chunks, extract.Chunk{
		DocumentID: "review",
		Seq:        0,
		Text:       "Quarterly review. On-time performance held steady across most lanes.",
		TokenCount: 10,
	})
	return chunks
}

func newTestRetriever(t *testing.T, chunks []extract.Chunk, cfg Config) *Retriever {
	t.Helper()
	dir := t.TempDir()
	emb := &testutil.HashEmbedder{}
	require.NoError(t, index.NewBuilder(emb, log.NewNop()).Build(context.Background(), dir, chunks))
	lex, vec, err := index.Load(dir, emb)
	require.NoError(t, err)
	return New(lex, vec, emb, cfg, log.NewNop())
}

func TestRetrieve_FindsExactLaneRow(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{})
	ranked, err := r.Retrieve(context.Background(), "redlands to shelby performance", 6)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.LessOrEqual(t, len(ranked), 6)

	found := false
	for _, c := range ranked {
		if strings.Contains(c.Text, "ODFL,REDLANDS,SHELBY,82.9") {
			found = true
		}
	}
	assert.True(t, found, "results must include the exact lane row: %+v", ranked)
}

func TestRetrieve_DeduplicatesAtMaxConfidence(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{})
	ranked, err := r.Retrieve(context.Background(), "redlands to shelby performance", 10)
	require.NoError(t, err)

	seen := map[string]struct{}{}
	for _, c := range ranked {
		key := fmt.Sprintf("%s#%d", c.DocumentID, c.Seq)
		_, dup := seen[key]
		assert.False(t, dup, "chunk %s returned twice", key)
		seen[key] = struct{}{}
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	}
}

func TestRetrieve_Deterministic(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{})
	first, err := r.Retrieve(context.Background(), "on-time performance review", 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(context.Background(), "on-time performance review", 5)
		require.NoError(t, err)
		assert.Equal(t, first, again, "iteration %d", i)
	}
}

func TestRetrieve_OrderedByConfidence(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{})
	ranked, err := r.Retrieve(context.Background(), "fresno to dallas", 8)
	require.NoError(t, err)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Confidence, ranked[i].Confidence)
	}
}

func TestRetrieve_DefaultK(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{TopK: 3})
	ranked, err := r.Retrieve(context.Background(), "carrier performance", 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ranked), 3)
}

func TestRetrieve_SourceLabels(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, laneCorpus(), Config{})
	ranked, err := r.Retrieve(context.Background(), "redlands to shelby performance", 10)
	require.NoError(t, err)
	for _, c := range ranked {
		assert.Contains(t, []string{SourceLexical, SourceVector, SourceBoth}, c.Source)
	}
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := &testutil.HashEmbedder{}
	require.NoError(t, index.NewBuilder(good, log.NewNop()).Build(context.Background(), dir, laneCorpus()))
	lex, vec, err := index.Load(dir, good)
	require.NoError(t, err)

	bad := &testutil.HashEmbedder{Err: errors.New("service down")}
	r := New(lex, vec, bad, Config{}, log.NewNop())
	_, err = r.Retrieve(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, index.ErrEmbedding))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, normalize(-1, true))
	assert.InDelta(t, 0.5, normalize(1, true), 1e-9)
	assert.Less(t, normalize(3, true), 1.0)
	assert.Equal(t, 1.0, normalize(1.7, false))
	assert.Equal(t, 0.0, normalize(-0.2, false))
	assert.Equal(t, 0.42, normalize(0.42, false))
}
