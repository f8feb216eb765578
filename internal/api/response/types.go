package response

import (
	"time"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/auth"
	"github.com/mcoot/guessgame/internal/services/play"
)

// Identity is the caller as the identity provider knows them
type Identity struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	IsGuest  bool   `json:"is_guest"`
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Identity  `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player: Identity{
			UserID:   string(s.Identity.UserID),
			Nickname: s.Identity.Nickname,
			IsGuest:  s.Guest,
		},
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// PlayerStats is a player's record in the game
type PlayerStats struct {
	UserID          string `json:"user_id"`
	Nickname        string `json:"nickname"`
	Active          bool   `json:"active"`
	Wins            int    `json:"wins"`
	TotalGames      int    `json:"total_games"`
	MostRecentRound int64  `json:"most_recent_round"`
}

// PlayerStatsFromModel converts a model.Player
func PlayerStatsFromModel(p *model.Player) *PlayerStats {
	if p == nil {
		return nil
	}
	return &PlayerStats{
		UserID:          string(p.UserID),
		Nickname:        p.Nickname,
		Active:          p.Active,
		Wins:            p.Wins,
		TotalGames:      p.TotalGames,
		MostRecentRound: int64(p.MostRecentRound),
	}
}

// Me is the response for GET /players/me. Stats is nil until the caller
// has joined the game once.
type Me struct {
	Player Identity     `json:"player"`
	Stats  *PlayerStats `json:"stats"`
}

// MainView is the response for GET /game
type MainView struct {
	Players         []string     `json:"players"`
	CurrentRound    int64        `json:"current_round"`
	ConnectionToken string       `json:"connection_token"`
	Me              *PlayerStats `json:"me"`
}

// MainViewFromModel converts a play.MainView
func MainViewFromModel(v *play.MainView) MainView {
	players := v.ActiveNicknames
	if players == nil {
		players = []string{}
	}
	return MainView{
		Players:         players,
		CurrentRound:    int64(v.CurrentRoundNumber),
		ConnectionToken: v.ConnectionToken,
		Me:              PlayerStatsFromModel(v.Player),
	}
}

// GuessResult is the response for POST /game/guess
type GuessResult struct {
	Round   int64  `json:"round"`
	Outcome string `json:"outcome"`
	Message string `json:"message"`
	Won     bool   `json:"won"`
}

// GuessResultFromModel converts a play.GuessResult
func GuessResultFromModel(r *play.GuessResult) GuessResult {
	return GuessResult{
		Round:   int64(r.RoundID),
		Outcome: r.Outcome.String(),
		Message: r.Message,
		Won:     r.Won,
	}
}

// LeaderboardEntry is one leaderboard line
type LeaderboardEntry struct {
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
}

// Leaderboard is the response for GET /leaderboard
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// LeaderboardFromModel converts leaderboard entries
func LeaderboardFromModel(entries []model.LeaderboardEntry) Leaderboard {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{Nickname: e.Nickname, Wins: e.Wins}
	}
	return Leaderboard{Entries: out}
}

// Round is a round's public record. The secret is omitted while the round
// is still being played.
type Round struct {
	Round        int64      `json:"round"`
	Active       bool       `json:"active"`
	SecretNumber *int       `json:"secret_number,omitempty"`
	WinnerID     string     `json:"winner_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// RoundFromModel converts a model.GameSession
func RoundFromModel(s *model.GameSession) Round {
	r := Round{
		Round:     int64(s.RoundID),
		Active:    s.Active,
		WinnerID:  string(s.WinnerID),
		CreatedAt: s.CreatedAt,
	}
	if !s.Active {
		secret := s.SecretNumber
		r.SecretNumber = &secret
		endedAt := s.EndedAt
		r.EndedAt = &endedAt
	}
	return r
}

// Health is the response for GET /health
type Health struct {
	Status string `json:"status"`
}
