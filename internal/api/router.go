package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/guessgame/internal/api/apierr"
	"github.com/mcoot/guessgame/internal/api/handler"
	"github.com/mcoot/guessgame/internal/api/middleware"
	"github.com/mcoot/guessgame/internal/api/response"
	httpmw "github.com/mcoot/guessgame/internal/middleware"
	"github.com/mcoot/guessgame/internal/realtime"
	"github.com/mcoot/guessgame/internal/services/auth"
	"github.com/mcoot/guessgame/internal/services/play"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	PlayController  *play.Controller
	RealtimeHandler *realtime.Handler
	// PublicURL is encoded in the join QR code
	PublicURL string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	Mount(r, cfg)
	return r
}

// Mount registers the API routes under /api/v1 on an existing router
func Mount(r *mux.Router, cfg RouterConfig) {
	logger := cfg.Logger.With(slog.String("component", "api"))

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.PlayController)
	gameHandler := handler.NewGameHandler(cfg.PlayController)
	joinHandler := handler.NewJoinHandler(cfg.PublicURL)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := httpmw.Logging(logger)
	recoveryMiddleware := httpmw.Recovery(logger, apiPanicHandler)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)

	// Game routes (all require auth)
	game := api.PathPrefix("/game").Subrouter()
	game.Use(authMiddleware)
	game.HandleFunc("", gameHandler.View).Methods(http.MethodGet)
	game.HandleFunc("/guess", gameHandler.Guess).Methods(http.MethodPost)
	game.HandleFunc("/leave", gameHandler.Leave).Methods(http.MethodPost)

	// Public game state
	api.HandleFunc("/leaderboard", gameHandler.Leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/rounds/{round}", gameHandler.Round).Methods(http.MethodGet)
	api.HandleFunc("/join.png", joinHandler.QRCode).Methods(http.MethodGet)

	// Push channels authenticate with the channel token, not the session
	if cfg.RealtimeHandler != nil {
		api.HandleFunc("/channel", cfg.RealtimeHandler.SSE).Methods(http.MethodGet)
		api.HandleFunc("/ws", cfg.RealtimeHandler.WebSocket).Methods(http.MethodGet)
	}

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
