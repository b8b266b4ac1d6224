package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/lanekb/lanekb/internal/chat"
	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
)

// MaxQuestionLength bounds inbound questions.
const MaxQuestionLength = 2000

// AskHandler handles request/response retrieval endpoints.
type AskHandler struct {
	service *chat.Service
	logger  log.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(service *chat.Service, logger log.Logger) *AskHandler {
	return &AskHandler{service: service, logger: logger}
}

// RegisterRoutes registers retrieval routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/kb/{id}/ask", h.ask)
	mux.HandleFunc("GET /api/kb/{id}/transcripts", h.transcripts)
}

// AskRequest is the request body for one-shot retrieval.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "question is required")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, kb.KindInvalidRequest, "question too long")
		return
	}

	answer, err := h.service.Ask(r.Context(), r.PathValue("id"), req.Question, req.K)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *AskHandler) transcripts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	transcripts, err := h.service.Transcripts(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.logger.Error("failed to list transcripts", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transcripts": transcripts,
		"total":       len(transcripts),
	})
}
