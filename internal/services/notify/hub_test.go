package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessgame/internal/dependencies/mocks"
	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/game"
	"github.com/mcoot/guessgame/internal/services/guess"
	"github.com/mcoot/guessgame/internal/services/registry"
	"github.com/mcoot/guessgame/internal/storage/memory"
	"github.com/mcoot/guessgame/internal/testutil"
)

// fakeDeliverer records deliveries and fails for configured users
type fakeDeliverer struct {
	mu       sync.Mutex
	sent     map[model.UserID][]Message
	failures map[model.UserID]bool
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{
		sent:     make(map[model.UserID][]Message),
		failures: make(map[model.UserID]bool),
	}
}

func (d *fakeDeliverer) Deliver(_ context.Context, userID model.UserID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures[userID] {
		return errors.New("not connected")
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	d.sent[userID] = append(d.sent[userID], msg)
	return nil
}

func (d *fakeDeliverer) messages(userID model.UserID) []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent[userID]...)
}

func (d *fakeDeliverer) last(userID model.UserID) *Message {
	msgs := d.messages(userID)
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

func (d *fakeDeliverer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = make(map[model.UserID][]Message)
}

type HubSuite struct {
	suite.Suite
	storage   *memory.Storage
	clock     *mocks.MockClock
	random    *mocks.MockRandom
	bus       *events.Bus
	manager   *game.Manager
	registry  *registry.Registry
	deliverer *fakeDeliverer
	hub       *Hub
	ctx       context.Context
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.bus = events.NewBus(logger)
	s.manager = game.NewManager(s.storage, s.clock, s.random, logger)
	s.registry = registry.New(s.storage, s.manager, s.bus, s.clock, logger)
	s.deliverer = newFakeDeliverer()
	s.hub = NewHub(s.registry, s.manager, s.deliverer, logger)
	s.hub.Subscribe(s.bus)
	s.ctx = context.Background()
}

func (s *HubSuite) join(id model.UserID, nickname string) {
	err := s.registry.SetPresence(s.ctx, id, &model.Identity{UserID: id, Nickname: nickname}, true)
	s.Require().NoError(err)
}

// Snapshot tests

func (s *HubSuite) TestSnapshotEmptyGame() {
	msg, err := s.hub.Snapshot(s.ctx)
	s.Require().NoError(err)

	s.Empty(msg.Players)
	s.Equal(int64(1), msg.CurrNum)
	s.Empty(msg.GuessMsg)
	s.Empty(msg.LeaderBoard)
}

func (s *HubSuite) TestSnapshotWireShape() {
	s.join("u1", "Alice")

	msg, err := s.hub.Snapshot(s.ctx)
	s.Require().NoError(err)

	data, err := json.Marshal(msg)
	s.Require().NoError(err)
	s.JSONEq(`{
		"players": ["Alice"],
		"currNum": 1,
		"guessMsg": "",
		"leaderBoard": [{"nickname": "Alice", "wins": 0}]
	}`, string(data))
}

func (s *HubSuite) TestSnapshotIsFresh() {
	s.join("u1", "Alice")
	first, err := s.hub.Snapshot(s.ctx)
	s.Require().NoError(err)

	s.join("u2", "Bob")
	second, err := s.hub.Snapshot(s.ctx)
	s.Require().NoError(err)

	s.Equal([]string{"Alice"}, first.Players)
	s.Equal([]string{"Alice", "Bob"}, second.Players)
}

// Broadcast tests

func (s *HubSuite) TestPresenceChangeBroadcastsToAllActive() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")

	s.Equal([]string{"Alice", "Bob"}, s.deliverer.last("u1").Players)
	s.Equal([]string{"Alice", "Bob"}, s.deliverer.last("u2").Players)
}

func (s *HubSuite) TestLeaveBroadcastsUpdatedRoster() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")
	s.deliverer.reset()

	s.Require().NoError(s.registry.SetPresence(s.ctx, "u1", nil, false))

	// The leaver is no longer a recipient
	s.Empty(s.deliverer.messages("u1"))
	s.Equal([]string{"Bob"}, s.deliverer.last("u2").Players)
}

func (s *HubSuite) TestUnknownLeaveDoesNotBroadcast() {
	s.join("u1", "Alice")
	s.deliverer.reset()

	s.Require().NoError(s.registry.SetPresence(s.ctx, "ghost", nil, false))
	s.Empty(s.deliverer.messages("u1"))
}

func (s *HubSuite) TestDeliveryFailureDoesNotStopOthers() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")
	s.deliverer.reset()
	s.deliverer.failures["u1"] = true

	s.Require().NoError(s.hub.Broadcast(s.ctx))
	s.Len(s.deliverer.messages("u2"), 1)
}

// SendGuessFeedback tests

func (s *HubSuite) TestGuessFeedbackOnlyToSender() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")
	s.deliverer.reset()

	s.Require().NoError(s.hub.SendGuessFeedback(s.ctx, "u1", guess.TooLow, "10"))

	s.Equal("10 is too Low!", s.deliverer.last("u1").GuessMsg)
	s.Equal([]string{"Alice", "Bob"}, s.deliverer.last("u1").Players)
	s.Empty(s.deliverer.messages("u2"))
}

func (s *HubSuite) TestGuessFeedbackInvalid() {
	s.join("u1", "Alice")
	s.Require().NoError(s.hub.SendGuessFeedback(s.ctx, "u1", guess.Invalid, "abc"))
	s.Equal("abc is not a number!", s.deliverer.last("u1").GuessMsg)
}

func (s *HubSuite) TestGuessFeedbackDeliveryFailureIsNotAnError() {
	s.deliverer.failures["u1"] = true
	s.NoError(s.hub.SendGuessFeedback(s.ctx, "u1", guess.TooHigh, "90"))
}

// AnnounceWin tests

func (s *HubSuite) TestAnnounceWinPersonalizesMessages() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")
	s.join("u3", "Carol")
	s.deliverer.reset()

	s.Require().NoError(s.hub.AnnounceWin(s.ctx, 42, "u1"))

	s.Equal("Congratulations! You guessed 42!", s.deliverer.last("u1").GuessMsg)
	s.Equal("Game Over! Alice. The number was 42", s.deliverer.last("u2").GuessMsg)
	s.Equal("Game Over! Alice. The number was 42", s.deliverer.last("u3").GuessMsg)

	// One snapshot shared by every recipient
	s.Equal(s.deliverer.last("u1").Players, s.deliverer.last("u2").Players)
	s.Equal(s.deliverer.last("u1").LeaderBoard, s.deliverer.last("u3").LeaderBoard)
}

func (s *HubSuite) TestRoundEndedEventAnnouncesWin() {
	s.join("u1", "Alice")
	s.join("u2", "Bob")
	s.deliverer.reset()

	s.bus.Publish(s.ctx, model.Event{
		Type:    model.EventRoundEnded,
		UserID:  "u2",
		Payload: model.RoundEndedPayload{RoundID: 1, CorrectNumber: 7, WinnerID: "u2"},
	})

	s.Equal("Game Over! Bob. The number was 7", s.deliverer.last("u1").GuessMsg)
	s.Equal("Congratulations! You guessed 7!", s.deliverer.last("u2").GuessMsg)
}

func (s *HubSuite) TestMalformedRoundEndedPayloadIgnored() {
	s.join("u1", "Alice")
	s.deliverer.reset()

	s.NotPanics(func() {
		s.hub.HandleEvent(s.ctx, model.Event{Type: model.EventRoundEnded, Payload: "nope"})
	})
	s.Empty(s.deliverer.messages("u1"))
}
