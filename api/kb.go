package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
)

// Upload and input validation limits.
const (
	MaxUploadBytes      = 32 << 20 // 32 MiB per document
	MaxNameLength       = 200
	MaxDescriptionLen   = 2000
	uploadFormFileField = "file"
)

// KBHandler handles knowledge base lifecycle endpoints.
type KBHandler struct {
	manager *kb.Manager
	logger  log.Logger
}

// NewKBHandler creates a knowledge base handler.
func NewKBHandler(manager *kb.Manager, logger log.Logger) *KBHandler {
	return &KBHandler{manager: manager, logger: logger}
}

// RegisterRoutes registers knowledge base routes on the given mux.
func (h *KBHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/kb", h.create)
	mux.HandleFunc("GET /api/kb", h.list)
	mux.HandleFunc("GET /api/kb/{id}", h.get)
	mux.HandleFunc("DELETE /api/kb/{id}", h.delete)
	mux.HandleFunc("POST /api/kb/{id}/documents", h.upload)
	mux.HandleFunc("POST /api/kb/{id}/process", h.process)
}

// CreateKBRequest is the request body for creating a knowledge base.
type CreateKBRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *KBHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateKBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "name is required")
		return
	}
	if len(req.Name) > MaxNameLength || len(req.Description) > MaxDescriptionLen {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "name or description too long")
		return
	}

	record, err := h.manager.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create knowledge base", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *KBHandler) list(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.manager.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list knowledge bases", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"knowledge_bases": kbs,
		"total":           len(kbs),
	})
}

func (h *KBHandler) get(w http.ResponseWriter, r *http.Request) {
	record, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *KBHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete knowledge base", "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upload accepts one multipart file per request under the "file" field.
func (h *KBHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest,
			fmt.Sprintf("invalid multipart upload: %v", err))
		return
	}
	file, header, err := r.FormFile(uploadFormFileField)
	if err != nil {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest,
			`multipart field "file" is required`)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "reading upload failed")
		return
	}

	doc, err := h.manager.UploadDocument(r.Context(), r.PathValue("id"),
		content, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// process triggers a synchronous index rebuild. A concurrent second call
// for the same knowledge base returns 409 already_processing.
func (h *KBHandler) process(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.Process(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
