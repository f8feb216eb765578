package realtime

import (
	"log/slog"
	"net/http"
)

// Handler authenticates channel requests by token and hands them to the
// SSE or WebSocket transport
type Handler struct {
	hub    *Hub
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewHandler creates a new Handler
func NewHandler(hub *Hub, tokens *TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		tokens: tokens,
		logger: logger.With(slog.String("component", "realtime")),
	}
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*Client, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil, false
	}

	userID, err := h.tokens.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return NewClient(userID), true
}

// SSE handles GET /channel?token=...
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	client, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ServeSSE(w, r, h.hub, client)
}

// WebSocket handles GET /ws?token=...
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	client, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	ServeWebSocket(w, r, h.hub, client, h.logger)
}
