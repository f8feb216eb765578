package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
	"github.com/mcoot/guessgame/internal/storage/storagetest"
)

// Runs only against a real server, e.g.
// GUESSGAME_TEST_MONGO_URI=mongodb://localhost:27017 go test ./internal/storage/mongo/...
const uriEnv = "GUESSGAME_TEST_MONGO_URI"

type StorageSuite struct {
	storagetest.Suite
}

// droppingStorage removes its throwaway database on Close
type droppingStorage struct {
	*Storage
}

func (d droppingStorage) Close() error {
	_ = d.Drop(context.Background())
	return d.Storage.Close()
}

func TestStorageSuite(t *testing.T) {
	uri := os.Getenv(uriEnv)
	if uri == "" {
		t.Skipf("%s not set", uriEnv)
	}

	s := new(StorageSuite)
	s.NewStorage = func() storage.Storage {
		cfg := DefaultConfig()
		cfg.URI = uri
		cfg.Database = "guessgame_test_" + uuid.NewString()[:8]
		st, err := New(context.Background(), cfg)
		require.NoError(s.T(), err)
		return droppingStorage{st}
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TestUpdatePlayerWithoutVersionField() {
	st := s.Storage.(droppingStorage)
	_, err := st.players.InsertOne(s.Ctx, bson.M{"_id": "legacy", "nickname": "Old", "wins": 3})
	s.Require().NoError(err)

	updated, err := st.UpdatePlayer(s.Ctx, "legacy", func(existing *model.Player) (*model.Player, error) {
		existing.Wins++
		return existing, nil
	})
	s.Require().NoError(err)
	s.Equal(4, updated.Wins)

	stored, err := st.GetPlayer(s.Ctx, "legacy")
	s.Require().NoError(err)
	s.Equal(4, stored.Wins)
}

func TestPlayerVersionFilter(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "u1", "version": int64(3)}, playerVersionFilter("u1", 3))

	unversioned := playerVersionFilter("u1", 0)
	assert.Equal(t, "u1", unversioned["_id"])
	assert.Contains(t, unversioned["$or"], bson.M{"version": bson.M{"$exists": false}})
	assert.Contains(t, unversioned["$or"], bson.M{"version": int64(0)})
}
