// Package extract implements the document processor: format-specific text
// extraction and deterministic chunking.
//
// Extraction is row-oriented for tabular formats (CSV, XLSX) and
// paragraph-oriented for prose formats (PDF, DOCX, plain text). Tabular
// sections repeat the header per chunk so each chunk is self-describing,
// and chunk boundaries never split a row.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lanekb/lanekb/internal/log"
)

// Chunk is a bounded span of extracted document text, the unit of
// retrieval. Chunks are owned by the index, not the document; DocumentID
// is a back-reference.
type Chunk struct {
	DocumentID string
	Seq        int
	Text       string
	TokenCount int
}

// Key returns the chunk's identity used for deduplication across indices:
// same document + same sequence index counts once.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s#%d", c.DocumentID, c.Seq)
}

// Format classes for supported upload types. The class is determined once
// at ingestion from the file extension and drives extraction dispatch;
// it is never re-detected downstream.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatText = "text"
)

// formatByExtension maps lowercase file extensions to format classes.
var formatByExtension = map[string]string{
	".csv":  FormatCSV,
	".xlsx": FormatXLSX,
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".txt":  FormatText,
	".md":   FormatText,
}

// FormatClass returns the format class for a filename and whether the
// extension is supported.
func FormatClass(filename string) (string, bool) {
	class, ok := formatByExtension[strings.ToLower(filepath.Ext(filename))]
	return class, ok
}

// Default chunking parameters: target size with a fixed overlap between
// consecutive chunks of the same document, so context is not lost at
// chunk boundaries.
const (
	DefaultChunkTokens   = 700
	DefaultOverlapTokens = 80
)

// Config holds chunking parameters.
type Config struct {
	// ChunkTokens is the target chunk size in tokens. Default: DefaultChunkTokens.
	ChunkTokens int

	// OverlapTokens is the target overlap between consecutive chunks.
	// Default: DefaultOverlapTokens.
	OverlapTokens int
}

// Processor extracts text from heterogeneous file formats and splits it
// into retrieval-sized chunks. Safe for concurrent use.
type Processor struct {
	chunkTokens   int
	overlapTokens int
	logger        log.Logger
}

// NewProcessor creates a Processor. Zero or negative config values fall
// back to the defaults.
func NewProcessor(cfg Config, logger log.Logger) *Processor {
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = DefaultChunkTokens
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.ChunkTokens {
		cfg.OverlapTokens = DefaultOverlapTokens
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Processor{
		chunkTokens:   cfg.ChunkTokens,
		overlapTokens: cfg.OverlapTokens,
		logger:        logger,
	}
}

// section is an intermediate extraction result: a run of units that chunk
// together. For tabular formats the header is repeated per chunk and a
// unit is one row; for prose a unit is one paragraph and header is empty.
type section struct {
	header string
	units  []string
}

// ExtractAndChunk extracts text from a document's raw bytes and returns
// its chunks. The filename's extension selects the extractor. Corrupt or
// unreadable input yields an error naming the document; callers treat it
// as non-fatal to the rest of the batch.
func (p *Processor) ExtractAndChunk(docID, filename string, content []byte) ([]Chunk, error) {
	class, ok := FormatClass(filename)
	if !ok {
		return nil, fmt.Errorf("document %s (%s): unsupported extension", docID, filename)
	}

	var (
		sections []section
		err      error
	)
	switch class {
	case FormatCSV:
		sections, err = extractCSV(content)
	case FormatXLSX:
		sections, err = extractXLSX(content)
	case FormatPDF:
		sections, err = extractPDF(content)
	case FormatDOCX:
		sections, err = extractDOCX(content)
	default:
		sections, err = extractPlainText(content), nil
	}
	if err != nil {
		return nil, fmt.Errorf("document %s (%s): %w", docID, filename, err)
	}

	chunks := p.chunk(docID, sections)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s (%s): no extractable text", docID, filename)
	}

	p.logger.Debug("extracted document",
		"document_id", docID, "format", class, "chunks", len(chunks))
	return chunks, nil
}

// countTokens approximates the token count of a text span. Tokens are
// runs of non-separator characters; commas count as separators so CSV
// rows are measured field-wise. Deterministic by construction.
func countTokens(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
	}))
}
