package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lanekb/lanekb/internal/log"
)

// On-disk layout per knowledge base:
//
//	{root}/{kb_id}/metadata.json
//	{root}/{kb_id}/documents/{document_id}{ext}
//	{root}/{kb_id}/index/lexical.bin
//	{root}/{kb_id}/index/vector/
//
// The index directory is exclusively written during processing and
// read-only for concurrent retrieval. Rebuilds write a full replacement
// under index.staging and swap it in; old artifacts are deleted only
// after the new ones are in place.
const (
	metadataFile  = "metadata.json"
	documentsDir  = "documents"
	indexDir      = "index"
	indexStaging  = "index.staging"
	indexPrevious = "index.old"
)

// dirPerm is the permission for created knowledge base directories.
const dirPerm = 0o750

// Store is the filesystem document store. One directory per knowledge
// base holds uploaded source documents, the persisted metadata record,
// and the built index artifacts.
//
// Store is safe for concurrent use across different knowledge base ids;
// the Manager serializes writers per id.
type Store struct {
	root   string
	logger log.Logger
}

// NewStore creates a Store rooted at the given directory, creating it if
// necessary.
func NewStore(root string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute store root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) kbDir(id string) string {
	return filepath.Join(s.root, id)
}

// IndexDir returns the live index directory for a knowledge base.
func (s *Store) IndexDir(id string) string {
	return filepath.Join(s.kbDir(id), indexDir)
}

// validID rejects ids that could escape the store root. Ids are generated
// UUIDs in practice; this guards loading from externally supplied ids.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// CreateKB creates the directory layout for a new knowledge base and
// persists its initial metadata record.
func (s *Store) CreateKB(meta *Metadata) error {
	id := meta.KB.ID
	if !validID(id) {
		return fmt.Errorf("invalid knowledge base id %q", id)
	}
	if err := os.MkdirAll(filepath.Join(s.kbDir(id), documentsDir), dirPerm); err != nil {
		return fmt.Errorf("creating knowledge base directory: %w", err)
	}
	return s.SaveMetadata(meta)
}

// LoadMetadata reads the metadata record for a knowledge base.
// Returns ErrNotFound if the knowledge base does not exist.
func (s *Store) LoadMetadata(id string) (*Metadata, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	raw, err := os.ReadFile(filepath.Join(s.kbDir(id), metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", id, err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", id, err)
	}
	return &meta, nil
}

// SaveMetadata atomically persists the metadata record: write to a
// temporary file in the same directory, then rename over the old record.
// A crash mid-write never leaves a truncated metadata.json behind.
func (s *Store) SaveMetadata(meta *Metadata) error {
	id := meta.KB.ID
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", id, err)
	}

	dir := s.kbDir(id)
	tmp, err := os.CreateTemp(dir, metadataFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating metadata temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing metadata for %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing metadata for %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing metadata temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, metadataFile)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing metadata for %s: %w", id, err)
	}
	return nil
}

// ListMetadata returns the metadata records of all knowledge bases,
// skipping directories with unreadable records.
func (s *Store) ListMetadata() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing store root: %w", err)
	}

	metas := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(e.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable knowledge base directory",
				"dir", e.Name(), "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// documentPath derives the on-disk path for a document, keeping the
// original file extension so extraction can dispatch on it.
func (s *Store) documentPath(kbID string, doc Document) string {
	ext := strings.ToLower(filepath.Ext(doc.OriginalFilename))
	return filepath.Join(s.kbDir(kbID), documentsDir, doc.ID+ext)
}

// WriteDocument stores an uploaded document's bytes.
func (s *Store) WriteDocument(kbID string, doc Document, content []byte) error {
	path := s.documentPath(kbID, doc)
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return fmt.Errorf("writing document %s: %w", doc.ID, err)
	}
	return nil
}

// ReadDocument reads a stored document's bytes.
func (s *Store) ReadDocument(kbID string, doc Document) ([]byte, error) {
	raw, err := os.ReadFile(s.documentPath(kbID, doc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, doc.ID)
		}
		return nil, fmt.Errorf("reading document %s: %w", doc.ID, err)
	}
	return raw, nil
}

// DeleteKB removes a knowledge base directory with its documents, indices
// and metadata. Idempotent: deleting a missing knowledge base is not an
// error.
func (s *Store) DeleteKB(id string) error {
	if !validID(id) {
		return nil
	}
	if err := os.RemoveAll(s.kbDir(id)); err != nil {
		return fmt.Errorf("deleting knowledge base %s: %w", id, err)
	}
	return nil
}

// StageIndexDir creates and returns a fresh staging directory for a
// rebuild. Any leftover staging directory from an aborted run is removed
// first.
func (s *Store) StageIndexDir(id string) (string, error) {
	staging := filepath.Join(s.kbDir(id), indexStaging)
	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("clearing index staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, dirPerm); err != nil {
		return "", fmt.Errorf("creating index staging dir: %w", err)
	}
	return staging, nil
}

// SwapIndex promotes the staging directory to the live index directory.
// Order matters: the new artifacts are fully written before the old ones
// are touched, and the old directory is deleted only after the rename.
// Readers holding open handles on the old artifacts keep working until
// they reopen.
func (s *Store) SwapIndex(id string) error {
	dir := s.kbDir(id)
	staging := filepath.Join(dir, indexStaging)
	live := filepath.Join(dir, indexDir)
	previous := filepath.Join(dir, indexPrevious)

	if _, err := os.Stat(staging); err != nil {
		return fmt.Errorf("index staging dir missing for %s: %w", id, err)
	}

	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("clearing previous index dir: %w", err)
	}
	if _, err := os.Stat(live); err == nil {
		if err := os.Rename(live, previous); err != nil {
			return fmt.Errorf("retiring live index dir: %w", err)
		}
	}
	if err := os.Rename(staging, live); err != nil {
		return fmt.Errorf("promoting staged index dir: %w", err)
	}
	if err := os.RemoveAll(previous); err != nil {
		// The swap itself succeeded; a leftover index.old is cleaned up on
		// the next rebuild.
		s.logger.Warn("failed to remove previous index directory",
			"kb_id", id, "error", err)
	}
	return nil
}

// HasIndex reports whether a live index directory exists for the
// knowledge base.
func (s *Store) HasIndex(id string) bool {
	info, err := os.Stat(s.IndexDir(id))
	return err == nil && info.IsDir()
}
