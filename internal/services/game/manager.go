// Package game owns the round lifecycle: starting a round when none is
// active and retiring it when someone wins.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/dependencies/random"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Manager manages the active game session
type Manager struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewManager creates a new Manager
func NewManager(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "game")),
	}
}

func (m *Manager) newSecret() int {
	return m.random.Between(model.MinSecret, model.MaxSecret)
}

func (m *Manager) newSession(round model.RoundID) *model.GameSession {
	return &model.GameSession{
		RoundID:      round,
		SecretNumber: m.newSecret(),
		Active:       true,
		CreatedAt:    m.clock.Now(),
	}
}

// GetCurrentSession returns the active session, starting a new round if
// there is none
func (m *Manager) GetCurrentSession(ctx context.Context) (*model.GameSession, error) {
	session, created, err := m.storage.GetOrCreateActiveSession(ctx, m.newSession)
	if err != nil {
		return nil, fmt.Errorf("get current session: %w", err)
	}

	if created {
		m.logger.Info("round started",
			slog.Int64("round_id", int64(session.RoundID)))
	}
	return session, nil
}

// GetCurrentNumber returns the secret of the current round, assigning one
// if the stored session has none
func (m *Manager) GetCurrentNumber(ctx context.Context) (int, error) {
	session, err := m.GetCurrentSession(ctx)
	if err != nil {
		return 0, err
	}
	if session.SecretNumber != 0 {
		return session.SecretNumber, nil
	}

	secret, err := m.storage.AssignSecret(ctx, session.RoundID, m.newSecret())
	if err != nil {
		return 0, fmt.Errorf("assign secret: %w", err)
	}

	m.logger.Warn("assigned missing secret",
		slog.Int64("round_id", int64(session.RoundID)))
	return secret, nil
}

// RecordWin ends round with winnerID as the winner. It returns false when
// the round had already ended, in which case nothing changed.
func (m *Manager) RecordWin(ctx context.Context, round model.RoundID, winnerID model.UserID) (bool, error) {
	ok, err := m.storage.RetireSession(ctx, round, winnerID, m.clock.Now())
	if err != nil {
		return false, fmt.Errorf("retire round %d: %w", round, err)
	}

	if !ok {
		m.logger.Info("win ignored, round already ended",
			slog.Int64("round_id", int64(round)),
			slog.String("user_id", string(winnerID)))
		return false, nil
	}

	m.logger.Info("round won",
		slog.Int64("round_id", int64(round)),
		slog.String("user_id", string(winnerID)))
	return true, nil
}

// GetRound returns a past or current round by id
func (m *Manager) GetRound(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	return m.storage.GetSession(ctx, round)
}
