package storage

import (
	"context"
	"time"

	"github.com/mcoot/guessgame/internal/model"
)

// PlayerUpdate computes the new state of a player from its stored state.
// existing is nil when no record exists. Returning a nil player leaves
// storage untouched. The function may be invoked more than once when a
// backend retries after a concurrent write, so it must not have side effects.
type PlayerUpdate func(existing *model.Player) (*model.Player, error)

// Storage defines the interface for data persistence.
//
// Every write is all-or-nothing per entity. Entities returned are copies;
// callers re-read them per operation instead of caching.
type Storage interface {
	// Player operations
	GetPlayer(ctx context.Context, id model.UserID) (*model.Player, error)
	ListPlayers(ctx context.Context) ([]*model.Player, error)
	// UpdatePlayer runs an atomic read-modify-write on a single player.
	// Concurrent updates to the same id are serialized. Returns the stored
	// player, or nil if fn chose not to write.
	UpdatePlayer(ctx context.Context, id model.UserID, fn PlayerUpdate) (*model.Player, error)

	// Session operations

	// GetOrCreateActiveSession returns the active session, or atomically
	// creates one with RoundID = max(existing)+1 using create. Concurrent
	// callers never create two active sessions. created reports whether
	// this call started the round.
	GetOrCreateActiveSession(ctx context.Context, create model.SessionFactory) (session *model.GameSession, created bool, err error)
	// GetSession returns a session by round id
	GetSession(ctx context.Context, round model.RoundID) (*model.GameSession, error)
	// RetireSession ends the round if and only if it is still active.
	// Exactly one concurrent caller observes true.
	RetireSession(ctx context.Context, round model.RoundID, winner model.UserID, endedAt time.Time) (bool, error)
	// AssignSecret sets the secret of a round only if it is unset and
	// returns the secret now stored.
	AssignSecret(ctx context.Context, round model.RoundID, secret int) (int, error)

	// Close releases backend resources
	Close() error
}
