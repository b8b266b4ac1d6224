package kb

import (
	"errors"

	"github.com/lanekb/lanekb/internal/index"
)

// Sentinel errors for knowledge base operations.
// These errors are part of the Manager's public API and should be checked
// using errors.Is().
//
// Example:
//
//	meta, err := mgr.Get(ctx, id)
//	if errors.Is(err, kb.ErrNotFound) {
//	    // Handle missing knowledge base
//	}
var (
	// ErrNotFound indicates the requested knowledge base or document does
	// not exist.
	ErrNotFound = errors.New("knowledge base not found")

	// ErrUnsupportedFormat indicates an uploaded file's extension/MIME type
	// is not in the supported set.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates a document could not be read or chunked.
	// Per-document extraction failures are non-fatal to the batch; this
	// error is terminal only when zero documents could be chunked.
	ErrExtraction = errors.New("extraction error")

	// ErrAlreadyProcessing indicates a concurrent Process call on the same
	// knowledge base id. The second caller must not queue or race.
	ErrAlreadyProcessing = errors.New("knowledge base already processing")

	// ErrIndexUnavailable indicates a query before the knowledge base is
	// ready, or after the corpus changed since the last index build.
	// Stale indices are surfaced as an error, never silently served.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbeddingService indicates the external embedding service failed.
	// Fatal to a processing run: the run ends in error status, never a
	// partial index.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrEmptyCorpus indicates Process was called on a knowledge base with
	// no uploaded documents.
	ErrEmptyCorpus = errors.New("knowledge base has no documents")
)

// Error kind identifiers, stable across releases. Every user-visible
// failure carries one of these plus a human-readable detail string.
const (
	KindNotFound          = "not_found"
	KindUnsupportedFormat = "unsupported_format"
	KindExtraction        = "extraction_error"
	KindAlreadyProcessing = "already_processing"
	KindIndexUnavailable  = "index_unavailable"
	KindEmbeddingService  = "embedding_service_error"
	KindInternal          = "internal_error"

	// KindInvalidRequest marks request-validation failures on the HTTP
	// surface (malformed body, missing or oversized fields). It has no
	// sentinel: validation happens before any engine call.
	KindInvalidRequest = "invalid_request"
)

// KindOf maps an error to its stable kind identifier. Unknown errors map
// to KindInternal.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrExtraction), errors.Is(err, ErrEmptyCorpus):
		return KindExtraction
	case errors.Is(err, ErrAlreadyProcessing):
		return KindAlreadyProcessing
	case errors.Is(err, ErrIndexUnavailable):
		return KindIndexUnavailable
	case errors.Is(err, ErrEmbeddingService), errors.Is(err, index.ErrEmbedding):
		return KindEmbeddingService
	default:
		return KindInternal
	}
}
