package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lanekb/lanekb/internal/kb"
)

// writeJSON writes a JSON response with the given status code.
// If encoding fails after WriteHeader, the status is already sent; the
// error is logged but cannot change the response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error body: a stable error kind plus a
// human-readable message naming the offending resource.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// statusByKind maps error kinds to HTTP status codes.
var statusByKind = map[string]int{
	kb.KindNotFound:          http.StatusNotFound,
	kb.KindUnsupportedFormat: http.StatusUnsupportedMediaType,
	kb.KindAlreadyProcessing: http.StatusConflict,
	kb.KindIndexUnavailable:  http.StatusConflict,
	kb.KindExtraction:        http.StatusUnprocessableEntity,
	kb.KindEmbeddingService:  http.StatusBadGateway,
	kb.KindInternal:          http.StatusInternalServerError,
	kb.KindInvalidRequest:    http.StatusBadRequest,
}

// writeDomainError maps a knowledge base engine error to its HTTP
// status and JSON body.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := kb.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeError(w, status, kind, err.Error())
}
