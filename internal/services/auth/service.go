// Package auth identifies callers: guests by nickname, registered players
// by username and password. Sessions live in memory.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/model"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidNickname    = errors.New("nickname must be 1-32 characters")
	ErrInvalidUsername    = errors.New("username and password are required")
)

const maxNicknameLength = 32

// Session represents an authenticated session
type Session struct {
	Token     string
	Identity  model.Identity
	Guest     bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// account is a registered player's credentials
type account struct {
	userID       model.UserID
	username     string
	nickname     string
	passwordHash []byte
}

// Service handles authentication and session management
type Service struct {
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
	accounts map[string]*account // by username

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new AuthService
func New(clock clock.Clock, cfg Config) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		clock:           clock,
		sessions:        make(map[string]*Session),
		accounts:        make(map[string]*account),
		sessionDuration: cfg.SessionDuration,
	}
}

func normalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || len([]rune(nickname)) > maxNicknameLength {
		return "", ErrInvalidNickname
	}
	return nickname, nil
}

// CreateGuest creates an anonymous identity and session
func (s *Service) CreateGuest(ctx context.Context, nickname string) (*Session, error) {
	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return nil, err
	}

	identity := model.Identity{
		UserID:   model.UserID("g_" + uuid.NewString()),
		Nickname: nickname,
	}
	return s.createSession(identity, true), nil
}

// Register creates a registered account and session
func (s *Service) Register(ctx context.Context, username, password, nickname string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidUsername
	}
	nickname, err := normalizeNickname(nickname)
	if err != nil {
		return nil, err
	}

	// Hash before taking the lock; bcrypt is slow
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acct := &account{
		userID:       model.UserID("u_" + uuid.NewString()),
		username:     username,
		nickname:     nickname,
		passwordHash: hash,
	}

	s.mu.Lock()
	if _, ok := s.accounts[username]; ok {
		s.mu.Unlock()
		return nil, ErrUsernameExists
	}
	s.accounts[username] = acct
	s.mu.Unlock()

	return s.createSession(model.Identity{UserID: acct.userID, Nickname: acct.nickname}, false), nil
}

// Login authenticates a registered player and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	s.mu.RLock()
	acct, ok := s.accounts[strings.TrimSpace(username)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.createSession(model.Identity{UserID: acct.userID, Nickname: acct.nickname}, false), nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CurrentUser resolves a session token to the caller's identity
func (s *Service) CurrentUser(token string) (*model.Identity, error) {
	session, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	identity := session.Identity
	return &identity, nil
}

// createSession creates a new session for an identity
func (s *Service) createSession(identity model.Identity, guest bool) *Session {
	token := s.generateID("sess_")
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		Identity:  identity,
		Guest:     guest,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}

// generateID generates a random ID with a prefix
func (s *Service) generateID(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

// RunCleanup calls CleanExpiredSessions every interval until ctx is done
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanExpiredSessions()
		}
	}
}
