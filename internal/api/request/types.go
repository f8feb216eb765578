package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	Nickname string `json:"nickname"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GuessRequest is the request body for submitting a guess.
// The guess is free text; parsing is part of evaluation.
type GuessRequest struct {
	Guess string `json:"guess"`
}
