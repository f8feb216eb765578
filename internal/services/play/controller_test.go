package play

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessgame/internal/dependencies/mocks"
	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/services/game"
	"github.com/mcoot/guessgame/internal/services/guess"
	"github.com/mcoot/guessgame/internal/services/notify"
	"github.com/mcoot/guessgame/internal/services/registry"
	"github.com/mcoot/guessgame/internal/storage"
	"github.com/mcoot/guessgame/internal/storage/memory"
	"github.com/mcoot/guessgame/internal/testutil"
)

type staticTokens struct{}

func (staticTokens) Issue(userID model.UserID) (string, error) {
	return "token-" + string(userID), nil
}

type inbox struct {
	mu   sync.Mutex
	msgs map[model.UserID][]notify.Message
}

func (i *inbox) Deliver(_ context.Context, userID model.UserID, data []byte) error {
	var msg notify.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs[userID] = append(i.msgs[userID], msg)
	return nil
}

func (i *inbox) last(userID model.UserID) notify.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	msgs := i.msgs[userID]
	if len(msgs) == 0 {
		return notify.Message{}
	}
	return msgs[len(msgs)-1]
}

// flakyStorage fails player writes while failPlayers is set
type flakyStorage struct {
	*memory.Storage
	failPlayers atomic.Bool
}

var errUnavailable = errors.New("storage unavailable")

func (f *flakyStorage) UpdatePlayer(ctx context.Context, id model.UserID, fn storage.PlayerUpdate) (*model.Player, error) {
	if f.failPlayers.Load() {
		return nil, errUnavailable
	}
	return f.Storage.UpdatePlayer(ctx, id, fn)
}

type ControllerSuite struct {
	suite.Suite
	storage    *flakyStorage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	manager    *game.Manager
	registry   *registry.Registry
	inbox      *inbox
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.storage = &flakyStorage{Storage: memory.New()}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	bus := events.NewBus(logger)
	s.manager = game.NewManager(s.storage, s.clock, s.random, logger)
	s.registry = registry.New(s.storage, s.manager, bus, s.clock, logger)
	s.inbox = &inbox{msgs: make(map[model.UserID][]notify.Message)}
	hub := notify.NewHub(s.registry, s.manager, s.inbox, logger)
	hub.Subscribe(bus)
	s.controller = NewController(s.manager, s.registry, hub, staticTokens{}, bus, s.clock, logger)
	s.ctx = context.Background()

	// Round one's secret
	s.random.Queue(42)
}

func (s *ControllerSuite) view(id model.UserID, nickname string) *MainView {
	v, err := s.controller.RenderMainView(s.ctx, &model.Identity{UserID: id, Nickname: nickname})
	s.Require().NoError(err)
	return v
}

func (s *ControllerSuite) player(id model.UserID) *model.Player {
	p, err := s.controller.Player(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	return p
}

// RenderMainView tests

func (s *ControllerSuite) TestRenderMainViewRegistersCaller() {
	v := s.view("u1", "Alice")

	s.Equal([]string{"Alice"}, v.ActiveNicknames)
	s.Equal(model.RoundID(1), v.CurrentRoundNumber)
	s.Equal("token-u1", v.ConnectionToken)
	s.Require().NotNil(v.Player)
	s.Equal(1, v.Player.TotalGames)
}

func (s *ControllerSuite) TestRenderMainViewTwiceCountsOnce() {
	s.view("u1", "Alice")
	v := s.view("u1", "Alice")
	s.Equal(1, v.Player.TotalGames)
}

func (s *ControllerSuite) TestRenderMainViewRequiresIdentity() {
	_, err := s.controller.RenderMainView(s.ctx, nil)
	s.ErrorIs(err, ErrNoIdentity)
}

// SubmitGuess tests

func (s *ControllerSuite) TestCorrectGuessWins() {
	s.view("u1", "Alice")
	s.view("u2", "Bob")

	result, err := s.controller.SubmitGuess(s.ctx, "u1", "42")
	s.Require().NoError(err)

	s.Equal(guess.Correct, result.Outcome)
	s.True(result.Won)
	s.Equal("You Won!", result.Message)
	s.Equal(1, s.player("u1").Wins)

	retired, err := s.manager.GetRound(s.ctx, 1)
	s.Require().NoError(err)
	s.False(retired.Active)
	s.Equal(model.UserID("u1"), retired.WinnerID)

	next, err := s.manager.GetCurrentSession(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.RoundID(2), next.RoundID)

	s.Equal("Congratulations! You guessed 42!", s.inbox.last("u1").GuessMsg)
	s.Equal("Game Over! Alice. The number was 42", s.inbox.last("u2").GuessMsg)
}

func (s *ControllerSuite) TestWinIsAnnouncedWhenCounterUpdateFails() {
	s.view("u1", "Alice")
	s.view("u2", "Bob")
	s.storage.failPlayers.Store(true)

	result, err := s.controller.SubmitGuess(s.ctx, "u1", "42")
	s.Require().NoError(err)
	s.True(result.Won)
	s.Equal("You Won!", result.Message)

	retired, err := s.manager.GetRound(s.ctx, 1)
	s.Require().NoError(err)
	s.False(retired.Active)
	s.Equal(model.UserID("u1"), retired.WinnerID)

	s.Equal("Congratulations! You guessed 42!", s.inbox.last("u1").GuessMsg)
	s.Equal("Game Over! Alice. The number was 42", s.inbox.last("u2").GuessMsg)
	s.Equal(0, s.player("u1").Wins)
}

func (s *ControllerSuite) TestInvalidGuessChangesNothing() {
	s.view("u1", "Alice")
	before := s.player("u1")

	result, err := s.controller.SubmitGuess(s.ctx, "u1", "abc")
	s.Require().NoError(err)

	s.Equal(guess.Invalid, result.Outcome)
	s.Equal("abc is not a number!", result.Message)
	s.Equal("abc is not a number!", s.inbox.last("u1").GuessMsg)

	after := s.player("u1")
	s.Equal(before.Wins, after.Wins)
	s.Equal(before.TotalGames, after.TotalGames)

	session, err := s.manager.GetCurrentSession(s.ctx)
	s.Require().NoError(err)
	s.True(session.Active)
	s.Equal(model.RoundID(1), session.RoundID)
}

func (s *ControllerSuite) TestLowAndHighGuesses() {
	s.view("u1", "Alice")

	result, err := s.controller.SubmitGuess(s.ctx, "u1", "10")
	s.Require().NoError(err)
	s.Equal(guess.TooLow, result.Outcome)
	s.Equal("10 is too Low!", result.Message)

	result, err = s.controller.SubmitGuess(s.ctx, "u1", "90")
	s.Require().NoError(err)
	s.Equal(guess.TooHigh, result.Outcome)
	s.Equal("90 is too High!", s.inbox.last("u1").GuessMsg)
}

func (s *ControllerSuite) TestGuessFromUnknownPlayer() {
	_, err := s.controller.SubmitGuess(s.ctx, "ghost", "42")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ControllerSuite) TestSimultaneousCorrectGuessesOneWinner() {
	ids := []model.UserID{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		s.view(id, string(id))
	}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.controller.SubmitGuess(s.ctx, id, "42")
			if s.NoError(err) && result.Won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())

	board, err := s.controller.Leaderboard(s.ctx)
	s.Require().NoError(err)
	total := 0
	for _, e := range board {
		total += e.Wins
	}
	s.Equal(1, total)
}

func (s *ControllerSuite) TestNextRoundCountsPlayersAgain() {
	s.view("u1", "Alice")
	_, err := s.controller.SubmitGuess(s.ctx, "u1", "42")
	s.Require().NoError(err)

	v := s.view("u1", "Alice")
	s.Equal(model.RoundID(2), v.CurrentRoundNumber)
	s.Equal(2, v.Player.TotalGames)
}

// Presence tests

func (s *ControllerSuite) TestLeaveAndReconnect() {
	s.view("u1", "Alice")
	s.view("u2", "Bob")

	s.Require().NoError(s.controller.Leave(s.ctx, "u1"))
	s.Equal([]string{"Bob"}, s.inbox.last("u2").Players)

	s.controller.OnConnect(s.ctx, "u1")
	s.Equal([]string{"Alice", "Bob"}, s.inbox.last("u2").Players)
	s.Equal(1, s.player("u1").TotalGames)

	s.controller.OnDisconnect(s.ctx, "u1")
	s.False(s.player("u1").Active)
}

func (s *ControllerSuite) TestConnectBeforeViewIsIgnored() {
	s.controller.OnConnect(s.ctx, "stranger")

	p, err := s.controller.Player(s.ctx, "stranger")
	s.Require().NoError(err)
	s.Nil(p)
}

// Round history tests

func (s *ControllerSuite) TestRoundHidesActiveSecret() {
	s.view("u1", "Alice")

	round, err := s.controller.Round(s.ctx, 1)
	s.Require().NoError(err)
	s.Zero(round.SecretNumber)

	_, err = s.controller.SubmitGuess(s.ctx, "u1", "42")
	s.Require().NoError(err)

	round, err = s.controller.Round(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(42, round.SecretNumber)
	s.Equal(model.UserID("u1"), round.WinnerID)
}

func (s *ControllerSuite) TestRoundNotFound() {
	_, err := s.controller.Round(s.ctx, 7)
	s.ErrorIs(err, model.ErrSessionNotFound)
}
