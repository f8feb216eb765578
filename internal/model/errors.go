package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Session errors
	ErrSessionNotFound = errors.New("game session not found")
	ErrRoundNotActive  = errors.New("round is no longer active")

	// Storage errors
	ErrStorageConflict = errors.New("storage update conflict, retries exhausted")
)
