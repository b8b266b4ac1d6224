package api

import (
	"net/http"

	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	manager *kb.Manager
	logger  log.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(manager *kb.Manager, logger log.Logger) *HealthHandler {
	return &HealthHandler{manager: manager, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.ready)
}

// health is the liveness probe: the process is up.
func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready is the readiness probe: the document store is reachable.
func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.manager.List(r.Context())
	if err != nil {
		h.logger.Error("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, kb.KindInternal, "document store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"knowledge_bases": len(kbs),
	})
}
