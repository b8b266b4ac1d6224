package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lanekb/lanekb/internal/extract"
)

// ErrEmbedding indicates the external embedding service failed. Callers
// check it with errors.Is; a processing run that hits it ends in error
// status rather than a partial index.
var ErrEmbedding = errors.New("embedding failed")

// collectionName is the single chromem collection inside a knowledge
// base's vector artifact directory.
const collectionName = "chunks"

// embedBatchSize bounds the number of chunks sent to the embedding
// service per request.
const embedBatchSize = 32

// NewEmbeddingFunc bridges a Genkit ai.Embedder to chromem-go's
// EmbeddingFunc. chromem normalizes vectors itself, so no manual
// normalization is needed.
func NewEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := EmbedTexts(ctx, embedder, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	}
}

// EmbedTexts embeds texts through the external embedding service,
// batching requests. Any failure, including an empty response, is
// wrapped in ErrEmbedding.
func EmbedTexts(ctx context.Context, embedder ai.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		input := make([]*ai.Document, len(batch))
		for i, t := range batch {
			input[i] = ai.DocumentFromText(t, nil)
		}
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
				ErrEmbedding, len(resp.Embeddings), len(batch))
		}
		for i, e := range resp.Embeddings {
			if len(e.Embedding) == 0 {
				return nil, fmt.Errorf("%w: empty embedding for text %d", ErrEmbedding, start+i)
			}
			out = append(out, e.Embedding)
		}
	}
	return out, nil
}

// Vector is a dense vector index over chunk embeddings, backed by a
// persistent chromem collection. Cosine-similarity search is exact.
// Safe for concurrent searches.
type Vector struct {
	col *chromem.Collection
}

// BuildVector embeds all chunks and writes a persistent vector collection
// under dir. Embeddings are computed up front so an embedding service
// failure aborts the build before anything is persisted.
func BuildVector(ctx context.Context, dir string, chunks []extract.Chunk, embedder ai.Embedder) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := EmbedTexts(ctx, embedder, texts)
	if err != nil {
		return err
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	col, err := db.CreateCollection(collectionName, nil, NewEmbeddingFunc(embedder))
	if err != nil {
		return fmt.Errorf("creating vector collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.Key(),
			Content:   c.Text,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"seq":         strconv.Itoa(c.Seq),
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to vector collection: %w", err)
	}
	return nil
}

// OpenVector loads a previously built vector collection from dir.
func OpenVector(dir string, embedder ai.Embedder) (*Vector, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	col := db.GetCollection(collectionName, NewEmbeddingFunc(embedder))
	if col == nil {
		return nil, fmt.Errorf("vector collection missing in %s", dir)
	}
	return &Vector{col: col}, nil
}

// Len returns the number of indexed chunks.
func (v *Vector) Len() int { return v.col.Count() }

// Search returns the n nearest chunks to the query embedding by cosine
// similarity. n is clamped to the collection size.
func (v *Vector) Search(ctx context.Context, queryEmbedding []float32, n int) ([]Hit, error) {
	if count := v.col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := v.col.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		seq, err := strconv.Atoi(res.Metadata["seq"])
		if err != nil {
			return nil, fmt.Errorf("corrupt chunk metadata for %s: %w", res.ID, err)
		}
		hits = append(hits, Hit{
			Key:        res.ID,
			DocumentID: res.Metadata["document_id"],
			Seq:        seq,
			Text:       res.Content,
			Score:      float64(res.Similarity),
		})
	}
	return hits, nil
}
