// Package play exposes the operations a client performs: opening the game
// view, guessing, and connecting or leaving.
package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/game"
	"github.com/mcoot/guessgame/internal/services/guess"
	"github.com/mcoot/guessgame/internal/services/notify"
	"github.com/mcoot/guessgame/internal/services/registry"
)

// ErrNoIdentity is returned when an operation needs a known caller
var ErrNoIdentity = errors.New("caller identity required")

// TokenIssuer opens a push channel for a user
type TokenIssuer interface {
	Issue(userID model.UserID) (string, error)
}

// MainView is what a player sees when opening the game
type MainView struct {
	Player             *model.Player
	ActiveNicknames    []string
	CurrentRoundNumber model.RoundID
	ConnectionToken    string
}

// GuessResult is the outcome of a submitted guess
type GuessResult struct {
	RoundID model.RoundID
	Outcome guess.Outcome
	Message string
	// Won is true only for the guess that ended the round
	Won bool
}

// Controller wires the game manager, registry and notifications together
type Controller struct {
	manager  *game.Manager
	registry *registry.Registry
	hub      *notify.Hub
	tokens   TokenIssuer
	events   events.Publisher
	clock    clock.Clock
	logger   *slog.Logger
}

// NewController creates a new Controller
func NewController(
	manager *game.Manager,
	registry *registry.Registry,
	hub *notify.Hub,
	tokens TokenIssuer,
	publisher events.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		manager:  manager,
		registry: registry,
		hub:      hub,
		tokens:   tokens,
		events:   publisher,
		clock:    clock,
		logger:   logger.With(slog.String("component", "play")),
	}
}

// RenderMainView registers or re-activates the caller and returns the
// state needed to draw the game, plus a token for the push channel
func (c *Controller) RenderMainView(ctx context.Context, identity *model.Identity) (*MainView, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrNoIdentity
	}

	if err := c.registry.SetPresence(ctx, identity.UserID, identity, true); err != nil {
		return nil, err
	}

	session, err := c.manager.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	player, err := c.registry.GetByUserID(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}

	active, err := c.registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	nicknames := make([]string, len(active))
	for i, p := range active {
		nicknames[i] = p.Nickname
	}

	token, err := c.tokens.Issue(identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("issue channel token: %w", err)
	}

	return &MainView{
		Player:             player,
		ActiveNicknames:    nicknames,
		CurrentRoundNumber: session.RoundID,
		ConnectionToken:    token,
	}, nil
}

// SubmitGuess evaluates a guess against the current round. The caller
// receives feedback over its push channel; a correct guess ends the round
// and is announced to everyone.
func (c *Controller) SubmitGuess(ctx context.Context, userID model.UserID, raw string) (*GuessResult, error) {
	player, err := c.registry.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, model.ErrPlayerNotFound
	}

	session, err := c.manager.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	secret := session.SecretNumber
	if secret == 0 {
		if secret, err = c.manager.GetCurrentNumber(ctx); err != nil {
			return nil, err
		}
	}

	outcome := guess.Evaluate(secret, raw)
	result := &GuessResult{
		RoundID: session.RoundID,
		Outcome: outcome,
		Message: outcome.Feedback(raw),
	}

	if outcome != guess.Correct {
		c.feedback(ctx, userID, result.Message)
		return result, nil
	}

	won, err := c.manager.RecordWin(ctx, session.RoundID, userID)
	if err != nil {
		return nil, err
	}
	if !won {
		result.Message = fmt.Sprintf("%s was right, but round %d was already won!", raw, session.RoundID)
		c.feedback(ctx, userID, result.Message)
		return result, nil
	}
	result.Won = true

	// The round is already retired with this winner, so a failed counter
	// update must not stop the announcement.
	if err := c.registry.RecordWin(ctx, userID); err != nil {
		c.logger.Error("failed to record win count",
			slog.String("user_id", string(userID)),
			slog.Int64("round_id", int64(session.RoundID)),
			slog.Any("error", err))
	}

	c.logger.Info("player won round",
		slog.String("user_id", string(userID)),
		slog.Int64("round_id", int64(session.RoundID)),
		slog.Int("secret", secret))

	c.feedback(ctx, userID, result.Message)
	c.events.Publish(ctx, model.Event{
		Type:      model.EventRoundEnded,
		Timestamp: c.clock.Now(),
		UserID:    userID,
		Payload: model.RoundEndedPayload{
			RoundID:       session.RoundID,
			CorrectNumber: secret,
			WinnerID:      userID,
		},
	})
	return result, nil
}

func (c *Controller) feedback(ctx context.Context, userID model.UserID, text string) {
	if err := c.hub.SendText(ctx, userID, text); err != nil {
		c.logger.Warn("failed to send guess feedback",
			slog.String("user_id", string(userID)),
			slog.Any("error", err))
	}
}

// Leave marks the caller as no longer present
func (c *Controller) Leave(ctx context.Context, userID model.UserID) error {
	return c.registry.SetPresence(ctx, userID, nil, false)
}

// OnConnect is called when a user opens their first push channel
func (c *Controller) OnConnect(ctx context.Context, userID model.UserID) {
	if err := c.registry.SetPresence(ctx, userID, nil, true); err != nil {
		c.logger.Error("failed to mark player connected",
			slog.String("user_id", string(userID)),
			slog.Any("error", err))
	}
}

// OnDisconnect is called when a user's last push channel closes
func (c *Controller) OnDisconnect(ctx context.Context, userID model.UserID) {
	if err := c.registry.SetPresence(ctx, userID, nil, false); err != nil {
		c.logger.Error("failed to mark player disconnected",
			slog.String("user_id", string(userID)),
			slog.Any("error", err))
	}
}

// Player returns the caller's record, or nil if they never joined
func (c *Controller) Player(ctx context.Context, userID model.UserID) (*model.Player, error) {
	return c.registry.GetByUserID(ctx, userID)
}

// Leaderboard returns all players ranked by wins
func (c *Controller) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	return c.registry.Leaderboard(ctx)
}

// Round returns a round by id. The secret of a round still in play is
// withheld.
func (c *Controller) Round(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	session, err := c.manager.GetRound(ctx, round)
	if err != nil {
		return nil, err
	}
	if session.Active {
		session.SecretNumber = 0
	}
	return session, nil
}

// Snapshot returns the current broadcast state
func (c *Controller) Snapshot(ctx context.Context) (*notify.Message, error) {
	return c.hub.Snapshot(ctx)
}
