package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventPlayerPresenceChanged EventType = "player_presence_changed"
	EventRoundEnded            EventType = "round_ended"
)

// Event is the base structure for all events
type Event struct {
	Type      EventType
	Timestamp time.Time
	UserID    UserID // The player who triggered or is affected
	Payload   any    // Type-specific data
}

// PresenceChangedPayload contains data for presence events
type PresenceChangedPayload struct {
	Player  Player
	Joining bool
}

// RoundEndedPayload contains data for round ended events
type RoundEndedPayload struct {
	RoundID       RoundID
	CorrectNumber int
	WinnerID      UserID
}
