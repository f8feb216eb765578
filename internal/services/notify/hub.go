// Package notify builds game-state snapshots and pushes them to players.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/guess"
)

// Deliverer pushes a serialized message to one user's open channels.
// Implementations must not block for long.
type Deliverer interface {
	Deliver(ctx context.Context, userID model.UserID, msg []byte) error
}

// Players is the part of the player registry a snapshot needs
type Players interface {
	GetByUserID(ctx context.Context, id model.UserID) (*model.Player, error)
	ListActive(ctx context.Context) ([]*model.Player, error)
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Rounds provides the current round
type Rounds interface {
	GetCurrentSession(ctx context.Context) (*model.GameSession, error)
}

// LeaderboardRow is one leaderboard line on the wire
type LeaderboardRow struct {
	Nickname string `json:"nickname"`
	Wins     int    `json:"wins"`
}

// Message is the push notification sent to clients
type Message struct {
	Players     []string         `json:"players"`
	CurrNum     int64            `json:"currNum"`
	GuessMsg    string           `json:"guessMsg"`
	LeaderBoard []LeaderboardRow `json:"leaderBoard"`
}

// Hub computes snapshots and fans them out through a Deliverer
type Hub struct {
	players   Players
	rounds    Rounds
	deliverer Deliverer
	logger    *slog.Logger
}

// NewHub creates a new Hub
func NewHub(players Players, rounds Rounds, deliverer Deliverer, logger *slog.Logger) *Hub {
	return &Hub{
		players:   players,
		rounds:    rounds,
		deliverer: deliverer,
		logger:    logger.With(slog.String("component", "notify")),
	}
}

// Subscribe wires the hub to presence and round events
func (h *Hub) Subscribe(bus *events.Bus) {
	bus.Subscribe(model.EventPlayerPresenceChanged, h.HandleEvent)
	bus.Subscribe(model.EventRoundEnded, h.HandleEvent)
}

// HandleEvent reacts to a published event. Failures are logged.
func (h *Hub) HandleEvent(ctx context.Context, event model.Event) {
	var err error
	switch event.Type {
	case model.EventPlayerPresenceChanged:
		err = h.Broadcast(ctx)
	case model.EventRoundEnded:
		payload, ok := event.Payload.(model.RoundEndedPayload)
		if !ok {
			h.logger.Error("unexpected round ended payload",
				slog.String("payload_type", fmt.Sprintf("%T", event.Payload)))
			return
		}
		err = h.AnnounceWin(ctx, payload.CorrectNumber, payload.WinnerID)
	default:
		return
	}

	if err != nil {
		h.logger.Error("failed to notify players",
			slog.String("event_type", string(event.Type)),
			slog.String("user_id", string(event.UserID)),
			slog.Any("error", err))
	}
}

// Snapshot assembles the current state. It is never cached.
func (h *Hub) Snapshot(ctx context.Context) (*Message, error) {
	msg, _, err := h.snapshot(ctx)
	return msg, err
}

func (h *Hub) snapshot(ctx context.Context) (*Message, []*model.Player, error) {
	session, err := h.rounds.GetCurrentSession(ctx)
	if err != nil {
		return nil, nil, err
	}

	active, err := h.players.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	board, err := h.players.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}

	msg := &Message{
		Players:     make([]string, len(active)),
		CurrNum:     int64(session.RoundID),
		LeaderBoard: make([]LeaderboardRow, len(board)),
	}
	for i, p := range active {
		msg.Players[i] = p.Nickname
	}
	for i, e := range board {
		msg.LeaderBoard[i] = LeaderboardRow{Nickname: e.Nickname, Wins: e.Wins}
	}
	return msg, active, nil
}

// Broadcast sends the same snapshot to every active player
func (h *Hub) Broadcast(ctx context.Context) error {
	msg, recipients, err := h.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("broadcast snapshot: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	sent := 0
	for _, p := range recipients {
		if h.deliver(ctx, p.UserID, data) {
			sent++
		}
	}

	h.logger.Debug("broadcast sent",
		slog.Int("recipients", len(recipients)),
		slog.Int("delivered", sent))
	return nil
}

// SendGuessFeedback sends a snapshot carrying the guess result to one player
func (h *Hub) SendGuessFeedback(ctx context.Context, userID model.UserID, outcome guess.Outcome, raw string) error {
	return h.SendText(ctx, userID, outcome.Feedback(raw))
}

// SendText sends a snapshot with text as its message to one player
func (h *Hub) SendText(ctx context.Context, userID model.UserID, text string) error {
	msg, _, err := h.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("feedback snapshot: %w", err)
	}
	msg.GuessMsg = text

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.deliver(ctx, userID, data)
	return nil
}

// AnnounceWin tells every active player the round is over. The winner gets
// a congratulation, everyone else the winner's name and the number.
func (h *Hub) AnnounceWin(ctx context.Context, correctNumber int, winnerID model.UserID) error {
	msg, recipients, err := h.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("announce snapshot: %w", err)
	}

	winnerName := string(winnerID)
	winner, err := h.players.GetByUserID(ctx, winnerID)
	if err != nil {
		return err
	}
	if winner != nil {
		winnerName = winner.Nickname
	}

	winnerMsg := *msg
	winnerMsg.GuessMsg = WinnerMessage(correctNumber)
	winnerData, err := json.Marshal(winnerMsg)
	if err != nil {
		return err
	}

	otherMsg := *msg
	otherMsg.GuessMsg = GameOverMessage(winnerName, correctNumber)
	otherData, err := json.Marshal(otherMsg)
	if err != nil {
		return err
	}

	for _, p := range recipients {
		if p.UserID == winnerID {
			h.deliver(ctx, p.UserID, winnerData)
		} else {
			h.deliver(ctx, p.UserID, otherData)
		}
	}

	h.logger.Info("win announced",
		slog.String("user_id", string(winnerID)),
		slog.Int("recipients", len(recipients)))
	return nil
}

// deliver pushes one message, logging rather than returning failures
func (h *Hub) deliver(ctx context.Context, userID model.UserID, data []byte) bool {
	if err := h.deliverer.Deliver(ctx, userID, data); err != nil {
		h.logger.Warn("delivery failed",
			slog.String("user_id", string(userID)),
			slog.Any("error", err))
		return false
	}
	return true
}

// WinnerMessage is the text the winning player receives
func WinnerMessage(n int) string {
	return fmt.Sprintf("Congratulations! You guessed %d!", n)
}

// GameOverMessage is the text every other player receives
func GameOverMessage(winnerNickname string, n int) string {
	return fmt.Sprintf("Game Over! %s. The number was %d", winnerNickname, n)
}
