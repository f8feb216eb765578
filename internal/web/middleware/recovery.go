package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/guessgame/internal/middleware"
	"github.com/mcoot/guessgame/internal/web/templates/pages"
)

// Recovery creates panic recovery middleware for the web interface
// Returns an HTML error page on panic
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, webPanicHandler)
}

func webPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = pages.Error("The game hit a problem. Your score is safe, try again in a moment.").Render(r.Context(), w)
}
