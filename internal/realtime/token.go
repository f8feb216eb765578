package realtime

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired channel token")

const tokenIssuer = "guessgame"

// ChannelClaims are carried by a channel token. Subject is the user id.
type ChannelClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks the tokens clients use to open a channel
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenIssuer creates a TokenIssuer signing with HS256
func NewTokenIssuer(secret []byte, ttl time.Duration, clock clock.Clock) *TokenIssuer {
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		clock:  clock,
	}
}

// Issue returns a token that lets userID open a channel
func (t *TokenIssuer) Issue(userID model.UserID) (string, error) {
	now := t.clock.Now()
	claims := &ChannelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate checks a token and returns the user it was issued to
func (t *TokenIssuer) Validate(tokenString string) (model.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChannelClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*ChannelClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return model.UserID(claims.Subject), nil
}
