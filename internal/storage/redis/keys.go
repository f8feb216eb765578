package redis

import (
	"fmt"

	"github.com/mcoot/guessgame/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "guessgame"

// playerKey returns the Redis key for a Player
func playerKey(id model.UserID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playersIndexKey returns the Redis key for the SET of all player ids
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// sessionKey returns the Redis key for a GameSession
func sessionKey(round model.RoundID) string {
	return fmt.Sprintf("%s:session:%d", keyPrefix, round)
}

// activeSessionKey holds the round id of the active session, if any
func activeSessionKey() string {
	return fmt.Sprintf("%s:session:active", keyPrefix)
}

// maxRoundKey holds the highest round id ever allocated
func maxRoundKey() string {
	return fmt.Sprintf("%s:session:max_round", keyPrefix)
}
