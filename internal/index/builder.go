package index

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/firebase/genkit/go/ai"

	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/log"
)

// Builder builds both index artifacts for a chunk set. The two indices
// are never built separately: a build that fails partway leaves nothing
// usable behind in the target directory, and the caller discards it.
type Builder struct {
	embedder ai.Embedder
	logger   log.Logger
}

// NewBuilder creates a Builder using the given embedding service.
func NewBuilder(embedder ai.Embedder, logger log.Logger) *Builder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Builder{embedder: embedder, logger: logger}
}

// Build writes the lexical and vector artifacts for chunks into dir.
// dir is expected to be a staging directory; the caller swaps it in
// atomically after Build returns.
func (b *Builder) Build(ctx context.Context, dir string, chunks []extract.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index")
	}

	lex := NewLexical(chunks)
	if err := lex.Save(filepath.Join(dir, LexicalArtifact)); err != nil {
		return fmt.Errorf("building lexical index: %w", err)
	}
	if err := BuildVector(ctx, filepath.Join(dir, VectorArtifact), chunks, b.embedder); err != nil {
		return fmt.Errorf("building vector index: %w", err)
	}

	b.logger.Debug("built index artifacts", "dir", dir, "chunks", len(chunks))
	return nil
}

// Load opens both artifacts from a live index directory. It only reads;
// staleness is the caller's concern, tracked via the corpus fingerprint
// in the knowledge base metadata.
func Load(dir string, embedder ai.Embedder) (*Lexical, *Vector, error) {
	lex, err := LoadLexical(filepath.Join(dir, LexicalArtifact))
	if err != nil {
		return nil, nil, fmt.Errorf("loading lexical index: %w", err)
	}
	vec, err := OpenVector(filepath.Join(dir, VectorArtifact), embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("loading vector index: %w", err)
	}
	return lex, vec, nil
}
