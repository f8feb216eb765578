package model

import "time"

// UserID is the stable external identity of a player
type UserID string

// Identity is what the identity provider knows about the caller
type Identity struct {
	UserID   UserID
	Nickname string
}

// Player is the persistent record of someone who has joined the game.
// Records are never deleted, only toggled active/inactive.
type Player struct {
	UserID          UserID
	Nickname        string
	Active          bool    // true while connected to the current round
	MostRecentRound RoundID // last round this player was counted in
	Wins            int
	TotalGames      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a copy of the player safe to mutate
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	Nickname string
	Wins     int
}
