package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/guessgame/internal/api/middleware"
	"github.com/mcoot/guessgame/internal/api/request"
	"github.com/mcoot/guessgame/internal/api/response"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/play"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	controller *play.Controller
}

// NewGameHandler creates a new game handler
func NewGameHandler(controller *play.Controller) *GameHandler {
	return &GameHandler{
		controller: controller,
	}
}

// View handles GET /api/v1/game. Viewing the game joins it.
func (h *GameHandler) View(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	view, err := h.controller.RenderMainView(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MainViewFromModel(view))
}

// Guess handles POST /api/v1/game/guess
func (h *GameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.GuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	result, err := h.controller.SubmitGuess(r.Context(), identity.UserID, req.Guess)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GuessResultFromModel(result))
}

// Leave handles POST /api/v1/game/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	if err := h.controller.Leave(r.Context(), identity.UserID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Leaderboard handles GET /api/v1/leaderboard
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.controller.Leaderboard(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(entries))
}

// Round handles GET /api/v1/rounds/{round}
func (h *GameHandler) Round(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["round"], 10, 64)
	if err != nil || id < 1 {
		WriteError(w, NewInvalidRequestError("round must be a positive integer"))
		return
	}

	session, err := h.controller.Round(r.Context(), model.RoundID(id))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoundFromModel(session))
}
