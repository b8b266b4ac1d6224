// Package retriever implements hybrid retrieval over one knowledge
// base's lexical and vector indices: query reformulation, over-fetched
// parallel index queries, score-max deduplication, and a fixed-size
// ranked result list.
package retriever

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"

	"github.com/lanekb/lanekb/internal/index"
	"github.com/lanekb/lanekb/internal/log"
)

const (
	// DefaultTopK is the result list size when the caller passes k <= 0.
	DefaultTopK = 6

	// DefaultOverfetch is the multiple of k fetched from each index per
	// reformulated query before merging.
	DefaultOverfetch = 4
)

// Result sources. Lexical hits outrank vector-only hits on equal score:
// exact keyword matches are higher-precision signals for structured data.
const (
	SourceLexical = "lexical"
	SourceVector  = "vector"
	SourceBoth    = "both"
)

// RankedChunk is one retrieval result with its originating document and a
// normalized confidence score.
type RankedChunk struct {
	DocumentID string  `json:"document_id"`
	Seq        int     `json:"sequence_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Config holds retrieval parameters.
type Config struct {
	TopK      int
	Overfetch int
}

// Retriever runs hybrid queries against one knowledge base's loaded
// indices. Safe for concurrent use; retrieval holds no per-query state.
type Retriever struct {
	lex       *index.Lexical
	vec       *index.Vector
	embedder  ai.Embedder
	topK      int
	overfetch int
	logger    log.Logger
}

// New creates a Retriever over loaded indices. Zero config values fall
// back to the defaults.
func New(lex *index.Lexical, vec *index.Vector, embedder ai.Embedder, cfg Config, logger log.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = DefaultOverfetch
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		lex:       lex,
		vec:       vec,
		embedder:  embedder,
		topK:      cfg.TopK,
		overfetch: cfg.Overfetch,
		logger:    logger,
	}
}

// candidate accumulates the best observation of one chunk across all
// reformulations and both indices.
type candidate struct {
	hit        index.Hit
	confidence float64
	lexical    bool
	vector     bool
}

// Retrieve runs the hybrid retrieval algorithm for a query and returns
// the top k chunks. k <= 0 uses the configured default.
//
// The query is reformulated into its alternate forms; each form is run
// against both indices with an over-fetch factor; candidates are merged
// by chunk identity keeping the highest score seen; the merged set is
// truncated to k. Retrieval is deterministic for a fixed corpus, query,
// and k.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]RankedChunk, error) {
	if k <= 0 {
		k = r.topK
	}
	fetch := k * r.overfetch
	forms := Reformulate(query)

	// One embedding call covers every reformulation.
	embeddings, err := index.EmbedTexts(ctx, r.embedder, forms)
	if err != nil {
		return nil, err
	}

	var (
		mu         sync.Mutex
		candidates = make(map[string]*candidate)
	)
	merge := func(hits []index.Hit, lexical bool) {
		mu.Lock()
		defer mu.Unlock()
		for _, hit := range hits {
			conf := normalize(hit.Score, lexical)
			c, ok := candidates[hit.Key]
			if !ok {
				c = &candidate{hit: hit, confidence: conf}
				candidates[hit.Key] = c
			} else if conf > c.confidence {
				c.confidence = conf
			}
			if lexical {
				c.lexical = true
			} else {
				c.vector = true
			}
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, form := range forms {
		g.Go(func() error {
			merge(r.lex.Search(form, fetch), true)
			return nil
		})
		g.Go(func() error {
			hits, err := r.vec.Search(gctx, embeddings[i], fetch)
			if err != nil {
				return err
			}
			merge(hits, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := rank(candidates, k)
	r.logger.Debug("hybrid retrieval",
		"forms", len(forms), "candidates", len(candidates),
		"returned", len(ranked), "duration", time.Since(start))
	return ranked, nil
}

// normalize maps an index-specific score to [0, 1]. Vector scores are
// cosine similarities, clamped; unbounded BM25 scores go through
// s/(s+1), which preserves ordering.
func normalize(score float64, lexical bool) float64 {
	if lexical {
		if score <= 0 {
			return 0
		}
		return score / (score + 1)
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// rank orders merged candidates by confidence descending. On equal
// confidence a hit seen by the lexical index ranks above a vector-only
// hit; the chunk key breaks remaining ties so the order is total.
func rank(candidates map[string]*candidate, k int) []RankedChunk {
	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.lexical != b.lexical {
			return a.lexical
		}
		return a.hit.Key < b.hit.Key
	})
	if len(ordered) > k {
		ordered = ordered[:k]
	}

	ranked := make([]RankedChunk, len(ordered))
	for i, c := range ordered {
		source := SourceVector
		switch {
		case c.lexical && c.vector:
			source = SourceBoth
		case c.lexical:
			source = SourceLexical
		}
		ranked[i] = RankedChunk{
			DocumentID: c.hit.DocumentID,
			Seq:        c.hit.Seq,
			Text:       c.hit.Text,
			Confidence: c.confidence,
			Source:     source,
		}
	}
	return ranked
}
