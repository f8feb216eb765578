package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/play"
	"github.com/mcoot/guessgame/internal/web/middleware"
)

// GameHandler handles form posts from the game page. The page script
// normally guesses over the API; these cover browsers without it.
type GameHandler struct {
	controller *play.Controller
	logger     *slog.Logger
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(controller *play.Controller, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		controller: controller,
		logger:     logger,
	}
}

// Guess submits a guess and shows its feedback on the next page
func (h *GameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	if err := r.ParseForm(); err != nil {
		middleware.SetFlash(w, middleware.FlashError, "Invalid form data")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	result, err := h.controller.SubmitGuess(r.Context(), identity.UserID, r.FormValue("guess"))
	switch {
	case errors.Is(err, model.ErrPlayerNotFound):
		// Not joined yet; the home page joins them
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Error("failed to submit guess",
			slog.String("user_id", string(identity.UserID)),
			slog.Any("error", err))
		middleware.SetFlash(w, middleware.FlashError, "Could not submit your guess, try again")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	flashType := middleware.FlashInfo
	if result.Won {
		flashType = middleware.FlashSuccess
	}
	middleware.SetFlash(w, flashType, result.Message)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Leave marks the caller inactive without ending their session
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	if err := h.controller.Leave(r.Context(), identity.UserID); err != nil {
		h.logger.Error("failed to leave",
			slog.String("user_id", string(identity.UserID)),
			slog.Any("error", err))
	}

	middleware.SetFlash(w, middleware.FlashInfo, "You left the game. Reload to rejoin.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
