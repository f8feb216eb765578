// Package storagetest holds a conformance suite run against every storage backend.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Suite exercises the storage.Storage contract. Backends embed it and set
// NewStorage to build a fresh, empty store for each test.
type Suite struct {
	suite.Suite
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newSession(round model.RoundID) *model.GameSession {
	return &model.GameSession{RoundID: round, Active: true, CreatedAt: testTime}
}

func setPlayer(p *model.Player) storage.PlayerUpdate {
	return func(*model.Player) (*model.Player, error) {
		return p, nil
	}
}

// Player tests

func (s *Suite) TestUpdateAndGetPlayer() {
	stored, err := s.Storage.UpdatePlayer(s.Ctx, "u1", func(existing *model.Player) (*model.Player, error) {
		s.Nil(existing)
		return &model.Player{Nickname: "Alice", Active: true, CreatedAt: testTime, UpdatedAt: testTime}, nil
	})
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), stored.UserID)

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Alice", retrieved.Nickname)
	s.True(retrieved.Active)
	s.True(testTime.Equal(retrieved.CreatedAt))
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestUpdatePlayerSeesExisting() {
	_, err := s.Storage.UpdatePlayer(s.Ctx, "u1", setPlayer(&model.Player{Nickname: "Alice", Wins: 2}))
	s.Require().NoError(err)

	stored, err := s.Storage.UpdatePlayer(s.Ctx, "u1", func(existing *model.Player) (*model.Player, error) {
		s.Require().NotNil(existing)
		existing.Wins++
		return existing, nil
	})
	s.Require().NoError(err)
	s.Equal(3, stored.Wins)
}

func (s *Suite) TestUpdatePlayerNilSkipsWrite() {
	stored, err := s.Storage.UpdatePlayer(s.Ctx, "u1", func(*model.Player) (*model.Player, error) {
		return nil, nil
	})
	s.Require().NoError(err)
	s.Nil(stored)

	_, err = s.Storage.GetPlayer(s.Ctx, "u1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestUpdatePlayerErrorSkipsWrite() {
	_, err := s.Storage.UpdatePlayer(s.Ctx, "u1", setPlayer(&model.Player{Nickname: "Alice"}))
	s.Require().NoError(err)

	boom := model.ErrRoundNotActive
	_, err = s.Storage.UpdatePlayer(s.Ctx, "u1", func(existing *model.Player) (*model.Player, error) {
		return nil, boom
	})
	s.ErrorIs(err, boom)

	retrieved, err := s.Storage.GetPlayer(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Alice", retrieved.Nickname)
}

func (s *Suite) TestReturnedPlayerIsCopy() {
	_, err := s.Storage.UpdatePlayer(s.Ctx, "u1", setPlayer(&model.Player{Nickname: "Alice"}))
	s.Require().NoError(err)

	p, err := s.Storage.GetPlayer(s.Ctx, "u1")
	s.Require().NoError(err)
	p.Nickname = "Mallory"

	again, err := s.Storage.GetPlayer(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Alice", again.Nickname)
}

func (s *Suite) TestListPlayers() {
	for _, id := range []model.UserID{"u1", "u2", "u3"} {
		_, err := s.Storage.UpdatePlayer(s.Ctx, id, setPlayer(&model.Player{Nickname: string(id)}))
		s.Require().NoError(err)
	}

	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Len(players, 3)

	ids := make([]model.UserID, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.UserID)
	}
	s.ElementsMatch([]model.UserID{"u1", "u2", "u3"}, ids)
}

func (s *Suite) TestListPlayersEmpty() {
	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *Suite) TestConcurrentUpdatesSerialized() {
	const workers = 20

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.UpdatePlayer(s.Ctx, "u1", func(existing *model.Player) (*model.Player, error) {
				if existing == nil {
					existing = &model.Player{Nickname: "Alice"}
				}
				existing.Wins++
				return existing, nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	p, err := s.Storage.GetPlayer(s.Ctx, "u1")
	s.Require().NoError(err)
	s.Equal(workers, p.Wins)
}

// Session tests

func (s *Suite) TestFirstSessionIsRoundOne() {
	session, created, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(model.RoundID(1), session.RoundID)
	s.True(session.Active)
	s.Zero(session.SecretNumber)
}

func (s *Suite) TestGetOrCreateIsIdempotent() {
	first, created, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.RoundID, second.RoundID)
}

func (s *Suite) TestRetireThenNextRound() {
	first, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)

	ok, err := s.Storage.RetireSession(s.Ctx, first.RoundID, "u1", testTime)
	s.Require().NoError(err)
	s.True(ok)

	next, created, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(first.RoundID+1, next.RoundID)

	retired, err := s.Storage.GetSession(s.Ctx, first.RoundID)
	s.Require().NoError(err)
	s.False(retired.Active)
	s.Equal(model.UserID("u1"), retired.WinnerID)
	s.True(testTime.Equal(retired.EndedAt))
}

func (s *Suite) TestRetireOnlyOnce() {
	session, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)

	ok, err := s.Storage.RetireSession(s.Ctx, session.RoundID, "u1", testTime)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.Storage.RetireSession(s.Ctx, session.RoundID, "u2", testTime)
	s.Require().NoError(err)
	s.False(ok)

	retired, err := s.Storage.GetSession(s.Ctx, session.RoundID)
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), retired.WinnerID)
}

func (s *Suite) TestRetireUnknownRound() {
	_, err := s.Storage.RetireSession(s.Ctx, 42, "u1", testTime)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, 42)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestAssignSecretOnlyOnce() {
	session, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)

	secret, err := s.Storage.AssignSecret(s.Ctx, session.RoundID, 42)
	s.Require().NoError(err)
	s.Equal(42, secret)

	secret, err = s.Storage.AssignSecret(s.Ctx, session.RoundID, 7)
	s.Require().NoError(err)
	s.Equal(42, secret)

	stored, err := s.Storage.GetSession(s.Ctx, session.RoundID)
	s.Require().NoError(err)
	s.Equal(42, stored.SecretNumber)
}

func (s *Suite) TestAssignSecretUnknownRound() {
	_, err := s.Storage.AssignSecret(s.Ctx, 42, 7)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestConcurrentCreateYieldsOneRound() {
	const workers = 16

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		rounds  = make(chan model.RoundID, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, c, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
			if !s.NoError(err) {
				return
			}
			if c {
				created.Add(1)
			}
			rounds <- session.RoundID
		}()
	}
	wg.Wait()
	close(rounds)

	s.Equal(int32(1), created.Load())
	for round := range rounds {
		s.Equal(model.RoundID(1), round)
	}
}

func (s *Suite) TestConcurrentRetireHasOneWinner() {
	session, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, newSession)
	s.Require().NoError(err)

	const workers = 8

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Storage.RetireSession(s.Ctx, session.RoundID, model.UserID(rune('a'+i)), testTime)
			if s.NoError(err) && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
