// Package testutil provides shared test helpers: a deterministic
// in-process embedder and a quiet logger.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// EmbedderDim is the dimension of vectors produced by HashEmbedder.
const EmbedderDim = 64

// HashEmbedder is a deterministic ai.Embedder for tests: each text is
// embedded as a normalized hashed bag-of-words vector, so texts sharing
// tokens are cosine-similar and repeated calls always produce identical
// vectors. No network, no external service.
type HashEmbedder struct {
	// Err, when set, is returned by every Embed call. Used to simulate
	// embedding service failures.
	Err error

	// Calls counts Embed invocations.
	Calls int
}

// Name implements ai.Embedder.
func (e *HashEmbedder) Name() string { return "testutil/hash-embedder" }

// Register implements ai.Embedder. No-op for testing.
func (e *HashEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *HashEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text strings.Builder
		for _, part := range doc.Content {
			text.WriteString(part.Text)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: HashVector(text.String()),
		})
	}
	return resp, nil
}

// HashVector embeds text as a normalized hashed bag-of-words vector.
func HashVector(text string) []float32 {
	vec := make([]float32, EmbedderDim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%EmbedderDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
