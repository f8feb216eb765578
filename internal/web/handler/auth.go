package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/guessgame/internal/services/auth"
	"github.com/mcoot/guessgame/internal/services/play"
	"github.com/mcoot/guessgame/internal/web/middleware"
)

// AuthHandler handles sign-in and sign-out
type AuthHandler struct {
	authService *auth.Service
	controller  *play.Controller
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *auth.Service, controller *play.Controller) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		controller:  controller,
	}
}

// CreateGuest handles guest sign-in
func (h *AuthHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.SetFlash(w, middleware.FlashError, "Invalid form data")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	session, err := h.authService.CreateGuest(r.Context(), r.FormValue("nickname"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidNickname) {
			middleware.SetFlash(w, middleware.FlashError, "Nickname must be 1-32 characters")
		} else {
			middleware.SetFlash(w, middleware.FlashError, "Failed to create guest player")
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, session)
	middleware.SetFlash(w, middleware.FlashSuccess, "Welcome, "+session.Identity.Nickname+"!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Login handles login form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.SetFlash(w, middleware.FlashError, "Invalid form data")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		middleware.SetFlash(w, middleware.FlashError, "Username and password are required")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	session, err := h.authService.Login(r.Context(), username, password)
	if err != nil {
		middleware.SetFlash(w, middleware.FlashError, "Invalid username or password")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, session)
	middleware.SetFlash(w, middleware.FlashSuccess, "Welcome back, "+session.Identity.Nickname+"!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout leaves the game and ends the session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if identity, err := h.authService.CurrentUser(cookie.Value); err == nil {
			_ = h.controller.Leave(r.Context(), identity.UserID)
		}
		h.authService.InvalidateSession(cookie.Value)
	}

	// Clear session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	middleware.SetFlash(w, middleware.FlashInfo, "You have been logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
