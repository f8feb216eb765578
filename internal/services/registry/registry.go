// Package registry tracks every player who has joined and whether they are
// currently present.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// RoundSource provides the round new arrivals are counted against
type RoundSource interface {
	GetCurrentSession(ctx context.Context) (*model.GameSession, error)
}

// Registry manages player records and presence
type Registry struct {
	storage storage.Storage
	rounds  RoundSource
	events  events.Publisher
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new Registry
func New(
	storage storage.Storage,
	rounds RoundSource,
	publisher events.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		storage: storage,
		rounds:  rounds,
		events:  publisher,
		clock:   clock,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// GetByUserID returns the player, or nil if nobody has joined with that id
func (r *Registry) GetByUserID(ctx context.Context, id model.UserID) (*model.Player, error) {
	player, err := r.storage.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", id, err)
	}
	return player, nil
}

// ListActive returns the players currently present, ordered by nickname
// and then user id
func (r *Registry) ListActive(ctx context.Context) ([]*model.Player, error) {
	players, err := r.storage.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	active := make([]*model.Player, 0, len(players))
	for _, p := range players {
		if p.Active {
			active = append(active, p)
		}
	}
	slices.SortFunc(active, func(a, b *model.Player) int {
		return cmp.Or(
			cmp.Compare(a.Nickname, b.Nickname),
			cmp.Compare(a.UserID, b.UserID),
		)
	})
	return active, nil
}

// SetPresence marks a player as joined or left.
//
// A first join creates the record, provided identity describes the same
// user. A join counts towards TotalGames once per round. Leaving, or
// joining without identity, is a no-op for an unknown user. Every write
// publishes a PlayerPresenceChanged event.
func (r *Registry) SetPresence(ctx context.Context, userID model.UserID, identity *model.Identity, joining bool) error {
	var round model.RoundID
	if joining {
		session, err := r.rounds.GetCurrentSession(ctx)
		if err != nil {
			return err
		}
		round = session.RoundID
	}

	stored, err := r.storage.UpdatePlayer(ctx, userID, func(existing *model.Player) (*model.Player, error) {
		now := r.clock.Now()

		if existing == nil {
			if !joining || identity == nil || identity.UserID != userID {
				return nil, nil
			}
			return &model.Player{
				UserID:          userID,
				Nickname:        identity.Nickname,
				Active:          true,
				MostRecentRound: round,
				Wins:            0,
				TotalGames:      1,
				CreatedAt:       now,
				UpdatedAt:       now,
			}, nil
		}

		existing.Active = joining
		if joining && existing.MostRecentRound != round {
			existing.TotalGames++
			existing.MostRecentRound = round
		}
		existing.UpdatedAt = now
		return existing, nil
	})
	if err != nil {
		return fmt.Errorf("set presence for %s: %w", userID, err)
	}

	if stored == nil {
		r.logger.Debug("presence change ignored for unknown player",
			slog.String("user_id", string(userID)),
			slog.Bool("joining", joining))
		return nil
	}

	r.logger.Info("player presence changed",
		slog.String("user_id", string(userID)),
		slog.Bool("joining", joining),
		slog.Int64("round_id", int64(stored.MostRecentRound)),
		slog.Int("total_games", stored.TotalGames))

	r.events.Publish(ctx, model.Event{
		Type:      model.EventPlayerPresenceChanged,
		Timestamp: r.clock.Now(),
		UserID:    userID,
		Payload:   model.PresenceChangedPayload{Player: *stored, Joining: joining},
	})
	return nil
}

// RecordWin adds one win to the player's tally
func (r *Registry) RecordWin(ctx context.Context, winnerID model.UserID) error {
	_, err := r.storage.UpdatePlayer(ctx, winnerID, func(existing *model.Player) (*model.Player, error) {
		if existing == nil {
			return nil, model.ErrPlayerNotFound
		}
		existing.Wins++
		existing.UpdatedAt = r.clock.Now()
		return existing, nil
	})
	if err != nil {
		return fmt.Errorf("record win for %s: %w", winnerID, err)
	}
	return nil
}

// Leaderboard returns every player ordered by wins, most first, with ties
// broken by nickname
func (r *Registry) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	players, err := r.storage.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	slices.SortFunc(players, func(a, b *model.Player) int {
		return cmp.Or(
			cmp.Compare(b.Wins, a.Wins),
			cmp.Compare(a.Nickname, b.Nickname),
			cmp.Compare(a.UserID, b.UserID),
		)
	})

	board := make([]model.LeaderboardEntry, len(players))
	for i, p := range players {
		board[i] = model.LeaderboardEntry{Nickname: p.Nickname, Wins: p.Wins}
	}
	return board, nil
}
