// Package kb implements the knowledge base engine: the lifecycle state
// machine, the filesystem document store, and the coordination of
// extraction, index building, and retrieval.
package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/lanekb/lanekb/internal/extract"
	"github.com/lanekb/lanekb/internal/index"
	"github.com/lanekb/lanekb/internal/log"
	"github.com/lanekb/lanekb/internal/retriever"
)

// Manager owns the lifecycle of every knowledge base and coordinates the
// document processor, index builder, and hybrid retriever.
//
// Guarantees:
//   - At most one Process run per knowledge base id at a time; a second
//     concurrent call fails with ErrAlreadyProcessing.
//   - Every state transition is persisted before the mutating call
//     returns.
//   - ready status is written only after both index artifacts are
//     durably swapped in.
//   - Operations on different knowledge base ids never block each other
//     beyond brief metadata critical sections.
type Manager struct {
	store     *Store
	processor *extract.Processor
	builder   *index.Builder
	embedder  ai.Embedder
	retrCfg   retriever.Config
	logger    log.Logger

	// mu guards metadata load-modify-save cycles and the processing set.
	// It is never held across extraction or index building.
	mu         sync.Mutex
	processing map[string]struct{}

	// registry holds loaded retriever handles keyed by knowledge base id,
	// invalidated explicitly on reprocess and delete.
	regMu    sync.Mutex
	registry map[string]*retrieverHandle
}

type retrieverHandle struct {
	fingerprint string
	retriever   *retriever.Retriever
}

// NewManager creates a Manager over the given store and collaborators.
func NewManager(store *Store, processor *extract.Processor, builder *index.Builder, embedder ai.Embedder, retrCfg retriever.Config, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		store:      store,
		processor:  processor,
		builder:    builder,
		embedder:   embedder,
		retrCfg:    retrCfg,
		logger:     logger,
		processing: make(map[string]struct{}),
		registry:   make(map[string]*retrieverHandle),
	}
}

// Create creates a new knowledge base in state created.
func (m *Manager) Create(_ context.Context, name, description string) (KnowledgeBase, error) {
	now := time.Now().UTC()
	record := KnowledgeBase{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   description,
		Status:        StatusCreated,
		DocumentTypes: make(map[string]int),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.CreateKB(&Metadata{KB: record}); err != nil {
		return KnowledgeBase{}, err
	}
	m.logger.Info("knowledge base created", "kb_id", record.ID, "name", name)
	return record, nil
}

// List returns all knowledge bases, ordered by creation time then id.
func (m *Manager) List(_ context.Context) ([]KnowledgeBase, error) {
	metas, err := m.store.ListMetadata()
	if err != nil {
		return nil, err
	}
	kbs := make([]KnowledgeBase, 0, len(metas))
	for _, meta := range metas {
		kbs = append(kbs, meta.KB)
	}
	sort.Slice(kbs, func(i, j int) bool {
		if !kbs[i].CreatedAt.Equal(kbs[j].CreatedAt) {
			return kbs[i].CreatedAt.Before(kbs[j].CreatedAt)
		}
		return kbs[i].ID < kbs[j].ID
	})
	return kbs, nil
}

// Get returns one knowledge base record.
func (m *Manager) Get(_ context.Context, id string) (KnowledgeBase, error) {
	meta, err := m.store.LoadMetadata(id)
	if err != nil {
		return KnowledgeBase{}, err
	}
	return meta.KB, nil
}

// withMetadata runs a load-modify-save cycle under the metadata mutex.
func (m *Manager) withMetadata(id string, mutate func(*Metadata) error) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta, err := m.store.LoadMetadata(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(meta); err != nil {
		return nil, err
	}
	meta.KB.UpdatedAt = time.Now().UTC()
	if err := m.store.SaveMetadata(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// UploadDocument stores a document in a knowledge base. The file format
// is classified once here from the filename extension; unsupported
// extensions fail with ErrUnsupportedFormat. A knowledge base whose index
// was ready drops back to documents_added, and retrieval fails as stale
// until it is reprocessed.
func (m *Manager) UploadDocument(_ context.Context, id string, content []byte, filename, mimeType string) (Document, error) {
	class, ok := extract.FormatClass(filename)
	if !ok {
		return Document{}, fmt.Errorf("%w: %q (kb %s)", ErrUnsupportedFormat, filename, id)
	}

	doc := Document{
		ID:               uuid.NewString(),
		KnowledgeBaseID:  id,
		OriginalFilename: filename,
		MimeType:         mimeType,
		SizeBytes:        int64(len(content)),
		UploadedAt:       time.Now().UTC(),
	}

	_, err := m.withMetadata(id, func(meta *Metadata) error {
		if err := m.store.WriteDocument(id, doc, content); err != nil {
			return err
		}
		meta.Documents = append(meta.Documents, doc)
		meta.KB.DocumentCount = len(meta.Documents)
		if meta.KB.DocumentTypes == nil {
			meta.KB.DocumentTypes = make(map[string]int)
		}
		meta.KB.DocumentTypes[class]++
		if meta.KB.Status != StatusProcessing {
			meta.KB.Status = StatusDocumentsAdded
			meta.KB.ErrorMessage = ""
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}

	m.logger.Info("document uploaded",
		"kb_id", id, "document_id", doc.ID, "filename", filename, "bytes", doc.SizeBytes)
	return doc, nil
}

// Process extracts and chunks every document of the knowledge base,
// builds both indices, and atomically swaps them in. At most one run per
// knowledge base id is in flight; a concurrent second call fails with
// ErrAlreadyProcessing instead of queuing.
//
// A single unreadable document is skipped and reported in the result;
// the run fails only when zero documents could be chunked, or when the
// index build or embedding service fails. On failure the knowledge base
// ends in error status with the cause stored; the previous index, if
// any, stays on disk untouched and keeps serving queries that predate
// the corpus change.
func (m *Manager) Process(ctx context.Context, id string) (*ProcessResult, error) {
	if err := m.acquireProcessing(id); err != nil {
		return nil, err
	}
	defer m.releaseProcessing(id)

	// Snapshot the document set; uploads landing mid-run are detected by
	// fingerprint comparison at completion.
	meta, err := m.withMetadata(id, func(meta *Metadata) error {
		if len(meta.Documents) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyCorpus, id)
		}
		meta.KB.Status = StatusProcessing
		meta.KB.ErrorMessage = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	snapshot := meta.Documents
	fingerprint := Fingerprint(snapshot)

	start := time.Now()
	result := &ProcessResult{}
	var chunks []extract.Chunk
	for _, doc := range snapshot {
		content, err := m.store.ReadDocument(id, doc)
		if err == nil {
			var docChunks []extract.Chunk
			docChunks, err = m.processor.ExtractAndChunk(doc.ID, doc.OriginalFilename, content)
			if err == nil {
				chunks = append(chunks, docChunks...)
				result.DocumentsProcessed++
				continue
			}
		}
		m.logger.Warn("skipping document",
			"kb_id", id, "document_id", doc.ID, "filename", doc.OriginalFilename, "error", err)
		result.DocumentsFailed = append(result.DocumentsFailed, doc.ID)
	}
	result.ChunkCount = len(chunks)

	if len(chunks) == 0 {
		failErr := fmt.Errorf("%w: all %d documents failed extraction (kb %s)",
			ErrExtraction, len(snapshot), id)
		m.recordFailure(id, failErr)
		return result, failErr
	}

	staging, err := m.store.StageIndexDir(id)
	if err != nil {
		m.recordFailure(id, err)
		return result, err
	}
	if err := m.builder.Build(ctx, staging, chunks); err != nil {
		if errors.Is(err, index.ErrEmbedding) {
			err = fmt.Errorf("%w: %v", ErrEmbeddingService, err)
		}
		m.recordFailure(id, err)
		return result, err
	}
	if err := m.store.SwapIndex(id); err != nil {
		m.recordFailure(id, err)
		return result, err
	}

	// Artifacts are durable; only now may status become ready. If the
	// corpus changed while the run was in flight, the new index is
	// already stale, so the knowledge base stays in documents_added.
	_, err = m.withMetadata(id, func(meta *Metadata) error {
		meta.IndexFingerprint = fingerprint
		meta.IndexBuiltAt = time.Now().UTC()
		if Fingerprint(meta.Documents) == fingerprint {
			meta.KB.Status = StatusReady
		} else {
			meta.KB.Status = StatusDocumentsAdded
		}
		meta.KB.ErrorMessage = ""
		return nil
	})
	if err != nil {
		return result, err
	}

	m.invalidate(id)
	result.Duration = time.Since(start)
	m.logger.Info("knowledge base processed",
		"kb_id", id, "documents", result.DocumentsProcessed,
		"failed", len(result.DocumentsFailed), "chunks", result.ChunkCount,
		"duration", result.Duration)
	return result, nil
}

func (m *Manager) acquireProcessing(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.processing[id]; busy {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessing, id)
	}
	m.processing[id] = struct{}{}
	return nil
}

func (m *Manager) releaseProcessing(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processing, id)
}

// recordFailure persists error status with the cause. The store write
// itself failing is logged; the original error is what callers see.
func (m *Manager) recordFailure(id string, cause error) {
	_, err := m.withMetadata(id, func(meta *Metadata) error {
		meta.KB.Status = StatusError
		meta.KB.ErrorMessage = cause.Error()
		return nil
	})
	if err != nil {
		m.logger.Error("failed to record processing failure", "kb_id", id, "error", err)
	}
}

// Delete removes a knowledge base with its documents, indices, and
// metadata. Idempotent.
func (m *Manager) Delete(_ context.Context, id string) error {
	m.invalidate(id)
	if err := m.store.DeleteKB(id); err != nil {
		return err
	}
	m.logger.Info("knowledge base deleted", "kb_id", id)
	return nil
}

// Retriever returns a loaded retriever handle for a knowledge base,
// loading the persisted indices on first use and caching the handle
// until the next reprocess or delete.
//
// Staleness is checked here, lazily on query: a corpus that changed
// since the index was built fails with ErrIndexUnavailable naming the
// required action, never silently serving the superseded index.
// A rebuild in flight does not block queries: the previous index stays
// on disk until the swap, so an unchanged corpus keeps being served
// through the whole processing window.
func (m *Manager) Retriever(_ context.Context, id string) (*retriever.Retriever, error) {
	meta, err := m.store.LoadMetadata(id)
	if err != nil {
		return nil, err
	}
	switch meta.KB.Status {
	case StatusReady, StatusProcessing:
	default:
		return nil, fmt.Errorf("%w: kb %s is %s, run process first",
			ErrIndexUnavailable, id, meta.KB.Status)
	}
	if meta.IndexFingerprint == "" {
		return nil, fmt.Errorf("%w: kb %s has no built index yet, run process first",
			ErrIndexUnavailable, id)
	}
	fingerprint := Fingerprint(meta.Documents)
	if fingerprint != meta.IndexFingerprint {
		return nil, fmt.Errorf("%w: corpus of kb %s changed since last index build, reprocess required",
			ErrIndexUnavailable, id)
	}

	m.regMu.Lock()
	defer m.regMu.Unlock()
	if h, ok := m.registry[id]; ok && h.fingerprint == fingerprint {
		return h.retriever, nil
	}

	lex, vec, err := index.Load(m.store.IndexDir(id), m.embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: loading index for kb %s: %v", ErrIndexUnavailable, id, err)
	}
	r := retriever.New(lex, vec, m.embedder, m.retrCfg, m.logger.With("kb_id", id))
	m.registry[id] = &retrieverHandle{fingerprint: fingerprint, retriever: r}
	m.logger.Debug("retriever loaded", "kb_id", id, "chunks", lex.Len())
	return r, nil
}

// invalidate drops the cached retriever handle for a knowledge base.
func (m *Manager) invalidate(id string) {
	m.regMu.Lock()
	delete(m.registry, id)
	m.regMu.Unlock()
}

// SupportedFormats returns the accepted upload extensions, for error
// messages and the HTTP surface.
func SupportedFormats() string {
	return strings.Join([]string{".csv", ".xlsx", ".pdf", ".docx", ".txt", ".md"}, ", ")
}
