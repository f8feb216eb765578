package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/guessgame/internal/services/play"
	"github.com/mcoot/guessgame/internal/web/middleware"
	"github.com/mcoot/guessgame/internal/web/templates/layout"
	"github.com/mcoot/guessgame/internal/web/templates/pages"
)

// HomeHandler handles the home page
type HomeHandler struct {
	controller *play.Controller
	logger     *slog.Logger
}

// NewHomeHandler creates a new HomeHandler
func NewHomeHandler(controller *play.Controller, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{
		controller: controller,
		logger:     logger,
	}
}

// Home renders the game for a signed-in caller, joining them to the current
// round, or the sign-in forms otherwise
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	pageData := layout.PageData{
		Title:    "Home",
		Identity: identity,
		Flash:    middleware.GetFlash(r.Context()),
	}

	if identity == nil {
		render(w, r, pages.Home(pages.HomeData{PageData: pageData}))
		return
	}

	view, err := h.controller.RenderMainView(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to render main view",
			slog.String("user_id", string(identity.UserID)),
			slog.Any("error", err))
		renderError(w, r, http.StatusInternalServerError, "Could not load the game, try again in a moment.")
		return
	}

	board, err := h.controller.Leaderboard(r.Context())
	if err != nil {
		h.logger.Error("failed to load leaderboard", slog.Any("error", err))
		renderError(w, r, http.StatusInternalServerError, "Could not load the leaderboard, try again in a moment.")
		return
	}

	pageData.Title = "Play"
	render(w, r, pages.Game(pages.GameData{
		PageData:        pageData,
		Player:          view.Player,
		Players:         view.ActiveNicknames,
		Round:           view.CurrentRoundNumber,
		ConnectionToken: view.ConnectionToken,
		Leaderboard:     board,
	}))
}
