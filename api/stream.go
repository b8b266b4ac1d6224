package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanekb/lanekb/internal/chat"
	"github.com/lanekb/lanekb/internal/kb"
	"github.com/lanekb/lanekb/internal/log"
)

// StreamHandler serves persistent chat sessions over websocket. A
// session is bound to one knowledge base at connection time; each
// inbound message is a question, each outbound message a retrieval
// result tagged with a timestamp. Retrieval is stateless per query, so
// closing the connection releases no retrieval state.
type StreamHandler struct {
	service  *chat.Service
	logger   log.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(service *chat.Service, logger log.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes registers the stream route on the given mux.
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/kb/{id}/stream", h.stream)
}

// stream validates knowledge base readiness before upgrading, then runs
// the session loop on the connection's goroutine. When the client
// disconnects mid-retrieval, the in-flight retrieval completes and its
// result is discarded on the failed write; retrieval calls are bounded,
// so hard cancellation is not needed.
func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	kbID := r.PathValue("id")

	if err := h.service.ValidateReady(r.Context(), kbID); err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Debug("websocket upgrade failed", "kb_id", kbID, "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	h.logger.Info("chat session opened", "kb_id", kbID, "remote", conn.RemoteAddr())
	h.serve(r, conn, kbID)
	h.logger.Info("chat session closed", "kb_id", kbID, "remote", conn.RemoteAddr())
}

func (h *StreamHandler) serve(r *http.Request, conn *websocket.Conn, kbID string) {
	for {
		var query chat.Query
		if err := conn.ReadJSON(&query); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("chat session read error", "kb_id", kbID, "error", err)
			}
			return
		}

		event := chat.Event{Timestamp: time.Now().UTC()}
		if strings.TrimSpace(query.Question) == "" {
			event.Error = &chat.Fault{Kind: kb.KindInvalidRequest, Message: "question is required"}
		} else if answer, err := h.service.Ask(r.Context(), kbID, query.Question, query.K); err != nil {
			event.Error = &chat.Fault{Kind: kb.KindOf(err), Message: err.Error()}
		} else {
			event.Answer = answer
		}

		if err := conn.WriteJSON(event); err != nil {
			// Client went away; the completed retrieval result is discarded.
			h.logger.Debug("chat session write failed", "kb_id", kbID, "error", err)
			return
		}
	}
}
