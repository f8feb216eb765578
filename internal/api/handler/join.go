package handler

import (
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// JoinHandler serves a QR code pointing players at the game
type JoinHandler struct {
	publicURL string
}

// NewJoinHandler creates a new join handler
func NewJoinHandler(publicURL string) *JoinHandler {
	return &JoinHandler{publicURL: publicURL}
}

// QRCode handles GET /api/v1/join.png?size=N
func (h *JoinHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	if h.publicURL == "" {
		WriteError(w, NewInvalidRequestError("public URL not configured"))
		return
	}

	size := defaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			WriteError(w, NewInvalidRequestError("size must be between 64 and 1024"))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(h.publicURL, qrcode.Medium, size)
	if err != nil {
		WriteError(w, NewInternalError())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
