// Package index implements the two retrieval indices built per knowledge
// base: a BM25 lexical index and a dense vector index backed by a
// persistent chromem collection. Both are always built together from the
// same chunk set and persisted as named artifacts inside the knowledge
// base's index directory.
package index

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/lanekb/lanekb/internal/extract"
)

// Artifact names inside a knowledge base index directory.
const (
	// LexicalArtifact is the gob-serialized lexical index file.
	LexicalArtifact = "lexical.bin"

	// VectorArtifact is the vector collection directory.
	VectorArtifact = "vector"
)

// BM25 parameters. Standard values; document-length normalization uses
// the corpus average chunk length.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Hit is a single index search result. Score is index-specific: raw BM25
// for the lexical index, cosine similarity for the vector index.
type Hit struct {
	Key        string
	DocumentID string
	Seq        int
	Text       string
	Score      float64
}

// ChunkRecord is the stored form of a chunk inside the lexical index.
type ChunkRecord struct {
	DocumentID string
	Seq        int
	Text       string
	TokenCount int
}

// Lexical is a term-frequency ranking structure over chunk text with BM25
// scoring. Fields are exported for gob serialization; treat the struct as
// read-only after construction. Safe for concurrent searches.
type Lexical struct {
	Postings    map[string]map[string]int // term -> chunk key -> term frequency
	DocLengths  map[string]int            // chunk key -> token count
	Records     map[string]ChunkRecord    // chunk key -> chunk
	TotalTokens int
}

// NewLexical builds a lexical index over the given chunks.
func NewLexical(chunks []extract.Chunk) *Lexical {
	l := &Lexical{
		Postings:   make(map[string]map[string]int),
		DocLengths: make(map[string]int),
		Records:    make(map[string]ChunkRecord, len(chunks)),
	}
	for _, c := range chunks {
		key := c.Key()
		terms := Tokenize(c.Text)
		l.Records[key] = ChunkRecord{
			DocumentID: c.DocumentID,
			Seq:        c.Seq,
			Text:       c.Text,
			TokenCount: c.TokenCount,
		}
		l.DocLengths[key] = len(terms)
		l.TotalTokens += len(terms)
		for _, term := range terms {
			posting, ok := l.Postings[term]
			if !ok {
				posting = make(map[string]int)
				l.Postings[term] = posting
			}
			posting[key]++
		}
	}
	return l
}

// Len returns the number of indexed chunks.
func (l *Lexical) Len() int { return len(l.Records) }

// Search scores all chunks against the query terms with BM25 and returns
// the top n hits. Results are ordered by score descending with chunk key
// as the tie-break, so repeated searches over the same index are
// identical.
func (l *Lexical) Search(query string, n int) []Hit {
	if n <= 0 || len(l.Records) == 0 {
		return nil
	}

	avgLen := float64(l.TotalTokens) / float64(len(l.Records))
	if avgLen == 0 {
		return nil
	}
	total := float64(len(l.Records))

	scores := make(map[string]float64)
	for _, term := range Tokenize(query) {
		posting, ok := l.Postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (total-df+0.5)/(df+0.5))
		for key, tf := range posting {
			norm := 1 - bm25B + bm25B*float64(l.DocLengths[key])/avgLen
			scores[key] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(scores))
	for key, score := range scores {
		rec := l.Records[key]
		hits = append(hits, Hit{
			Key:        key,
			DocumentID: rec.DocumentID,
			Seq:        rec.Seq,
			Text:       rec.Text,
			Score:      score,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits
}

// Save serializes the index to the given path.
func (l *Lexical) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating lexical index file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(l); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding lexical index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing lexical index file: %w", err)
	}
	return nil
}

// LoadLexical reads a serialized lexical index. Loading never recomputes:
// the on-disk artifact is the index.
func LoadLexical(path string) (*Lexical, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lexical index: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var l Lexical
	if err := gob.NewDecoder(f).Decode(&l); err != nil {
		return nil, fmt.Errorf("decoding lexical index: %w", err)
	}
	return &l, nil
}

// Tokenize lowercases text and splits it into runs of letters and digits.
// Punctuation, including the commas separating CSV fields, is a
// separator, so structured rows tokenize into their field values.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
