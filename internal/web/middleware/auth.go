package middleware

import (
	"context"
	"net/http"

	"github.com/mcoot/guessgame/internal/model"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
)

// SessionCookieName holds the session token
const SessionCookieName = "session"

// IdentityProvider resolves a session token to the caller
type IdentityProvider interface {
	CurrentUser(token string) (*model.Identity, error)
}

// GetIdentity retrieves the signed-in caller from the request context
// Returns nil if nobody is signed in
func GetIdentity(ctx context.Context) *model.Identity {
	identity, _ := ctx.Value(identityContextKey).(*model.Identity)
	return identity
}

// Auth returns middleware that requires a signed-in caller
// Redirects to home page if not authenticated
func Auth(identities IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromSession(r, identities)
			if identity == nil {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth returns middleware that attempts authentication but doesn't require it
// Sets identity in context if authenticated, nil otherwise
func OptionalAuth(identities IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromSession(r, identities)
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromSession(r *http.Request, identities IdentityProvider) *model.Identity {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}

	identity, err := identities.CurrentUser(cookie.Value)
	if err != nil {
		return nil
	}

	return identity
}
