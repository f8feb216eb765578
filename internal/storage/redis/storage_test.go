package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
	"github.com/mcoot/guessgame/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini *miniredis.Miniredis
}

func TestStorageSuite(t *testing.T) {
	s := new(StorageSuite)
	s.NewStorage = func() storage.Storage {
		s.mini = miniredis.RunT(s.T())
		client := redis.NewClient(&redis.Options{
			Addr: s.mini.Addr(),
		})
		cfg := DefaultConfig()
		cfg.RetiredSessionTTL = time.Hour
		return NewWithClient(client, cfg)
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TestKeyLayout() {
	_, err := s.Storage.UpdatePlayer(s.Ctx, "u1", func(*model.Player) (*model.Player, error) {
		return &model.Player{Nickname: "Alice"}, nil
	})
	s.Require().NoError(err)

	session, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, func(round model.RoundID) *model.GameSession {
		return &model.GameSession{RoundID: round, Active: true}
	})
	s.Require().NoError(err)

	s.True(s.mini.Exists("guessgame:player:u1"))
	s.True(s.mini.Exists("guessgame:session:1"))

	members, err := s.mini.Members("guessgame:idx:players")
	s.Require().NoError(err)
	s.Equal([]string{"u1"}, members)

	active, err := s.mini.Get("guessgame:session:active")
	s.Require().NoError(err)
	s.Equal("1", active)

	ok, err := s.Storage.RetireSession(s.Ctx, session.RoundID, "u1", time.Now())
	s.Require().NoError(err)
	s.True(ok)

	s.False(s.mini.Exists("guessgame:session:active"))
	maxRound, err := s.mini.Get("guessgame:session:max_round")
	s.Require().NoError(err)
	s.Equal("1", maxRound)
}

func (s *StorageSuite) TestRetiredSessionExpires() {
	session, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, func(round model.RoundID) *model.GameSession {
		return &model.GameSession{RoundID: round, Active: true}
	})
	s.Require().NoError(err)

	s.Zero(s.mini.TTL("guessgame:session:1"))

	_, err = s.Storage.RetireSession(s.Ctx, session.RoundID, "", time.Now())
	s.Require().NoError(err)
	s.Equal(time.Hour, s.mini.TTL("guessgame:session:1"))

	s.mini.FastForward(2 * time.Hour)

	_, err = s.Storage.GetSession(s.Ctx, session.RoundID)
	s.ErrorIs(err, model.ErrSessionNotFound)

	// Round ids keep counting from the stored maximum
	next, _, err := s.Storage.GetOrCreateActiveSession(s.Ctx, func(round model.RoundID) *model.GameSession {
		return &model.GameSession{RoundID: round, Active: true}
	})
	s.Require().NoError(err)
	s.Equal(model.RoundID(2), next.RoundID)
}
