package model

import "time"

// RoundID identifies a round. Allocated as max(existing)+1, starting at 1.
type RoundID int64

const (
	// MinSecret and MaxSecret bound the secret number, inclusive
	MinSecret = 1
	MaxSecret = 100
)

// GameSession is one round of the game
type GameSession struct {
	RoundID      RoundID
	SecretNumber int // 0 means unset
	Active       bool
	WinnerID     UserID // set only when the round was won
	CreatedAt    time.Time
	EndedAt      time.Time
}

// Clone returns a copy of the session safe to mutate
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SessionFactory builds a fresh active session for the given round.
// Storage backends call it when they need to start a new round.
type SessionFactory func(round RoundID) *GameSession
