package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	httpmw "github.com/mcoot/guessgame/internal/middleware"
	"github.com/mcoot/guessgame/internal/services/auth"
	"github.com/mcoot/guessgame/internal/services/play"
	"github.com/mcoot/guessgame/internal/web/handler"
	"github.com/mcoot/guessgame/internal/web/middleware"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	PlayController *play.Controller
	StaticDir      string // Path to static files directory
}

// NewRouter creates a new web router with all routes configured
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	Mount(r, cfg)
	return r
}

// Mount registers the page routes on an existing router
func Mount(r *mux.Router, cfg RouterConfig) {
	logger := cfg.Logger.With(slog.String("component", "web"))

	// Create middleware
	loggingMiddleware := httpmw.Logging(logger)
	recoveryMiddleware := middleware.Recovery(logger)
	flashMiddleware := middleware.Flash()
	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.AuthService)

	// Create handlers
	homeHandler := handler.NewHomeHandler(cfg.PlayController, logger)
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.PlayController)
	gameHandler := handler.NewGameHandler(cfg.PlayController, logger)

	// Static files
	if cfg.StaticDir != "" {
		staticHandler := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir)))
		r.PathPrefix("/static/").Handler(staticHandler)
	}

	// Home shows the game or the sign-in forms
	public := r.NewRoute().Subrouter()
	public.Use(recoveryMiddleware)
	public.Use(loggingMiddleware)
	public.Use(flashMiddleware)
	public.Use(optionalAuthMiddleware)
	public.HandleFunc("/", homeHandler.Home).Methods(http.MethodGet)

	// Auth actions (no auth required)
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.Use(recoveryMiddleware)
	authRoutes.Use(loggingMiddleware)
	authRoutes.HandleFunc("/guest", authHandler.CreateGuest).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	// Protected routes (require auth)
	protected := r.NewRoute().Subrouter()
	protected.Use(recoveryMiddleware)
	protected.Use(loggingMiddleware)
	protected.Use(authMiddleware)
	protected.HandleFunc("/guess", gameHandler.Guess).Methods(http.MethodPost)
	protected.HandleFunc("/leave", gameHandler.Leave).Methods(http.MethodPost)
}
