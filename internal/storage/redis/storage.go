package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Read-modify-write operations use WATCH/MULTI and retry on conflict.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// transact runs fn under WATCH on keys, retrying when another client
// touched a watched key before EXEC.
func (s *Storage) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	retries := s.cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	for range retries {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return err
	}
	return model.ErrStorageConflict
}

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Player operations

func (s *Storage) GetPlayer(ctx context.Context, id model.UserID) (*model.Player, error) {
	return getPlayer(ctx, s.client, id)
}

func getPlayer(ctx context.Context, c getter, id model.UserID) (*model.Player, error) {
	data, err := c.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, playersIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.UserID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry without a record
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			return nil, err
		}
		players = append(players, &player)
	}
	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.UserID, fn storage.PlayerUpdate) (*model.Player, error) {
	var result *model.Player

	err := s.transact(ctx, func(tx *redis.Tx) error {
		result = nil

		existing, err := getPlayer(ctx, tx, id)
		if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
			return err
		}

		updated, err := fn(existing)
		if err != nil || updated == nil {
			return err
		}
		updated = updated.Clone()
		updated.UserID = id

		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, playerKey(id), data, 0)
			pipe.SAdd(ctx, playersIndexKey(), string(id))
			return nil
		})
		if err != nil {
			return err
		}
		result = updated
		return nil
	}, playerKey(id))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Session operations

func getSession(ctx context.Context, c getter, round model.RoundID) (*model.GameSession, error) {
	data, err := c.Get(ctx, sessionKey(round)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	var session model.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// getRound reads a round id stored under key, returning 0 when absent
func getRound(ctx context.Context, c getter, key string) (model.RoundID, error) {
	str, err := c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, err
	}
	return model.RoundID(n), nil
}

func (s *Storage) GetOrCreateActiveSession(ctx context.Context, create model.SessionFactory) (*model.GameSession, bool, error) {
	var (
		result  *model.GameSession
		created bool
	)

	err := s.transact(ctx, func(tx *redis.Tx) error {
		result, created = nil, false

		active, err := getRound(ctx, tx, activeSessionKey())
		if err != nil {
			return err
		}
		if active != 0 {
			result, err = getSession(ctx, tx, active)
			return err
		}

		maxRound, err := getRound(ctx, tx, maxRoundKey())
		if err != nil {
			return err
		}

		round := maxRound + 1
		session := create(round).Clone()
		session.RoundID = round
		session.Active = true

		data, err := json.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(round), data, 0)
			pipe.Set(ctx, activeSessionKey(), int64(round), 0)
			pipe.Set(ctx, maxRoundKey(), int64(round), 0)
			return nil
		})
		if err != nil {
			return err
		}
		result, created = session, true
		return nil
	}, activeSessionKey(), maxRoundKey())
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *Storage) GetSession(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	return getSession(ctx, s.client, round)
}

func (s *Storage) RetireSession(ctx context.Context, round model.RoundID, winner model.UserID, endedAt time.Time) (bool, error) {
	var retired bool

	err := s.transact(ctx, func(tx *redis.Tx) error {
		retired = false

		session, err := getSession(ctx, tx, round)
		if err != nil {
			return err
		}
		if !session.Active {
			return nil
		}

		active, err := getRound(ctx, tx, activeSessionKey())
		if err != nil {
			return err
		}

		session.Active = false
		session.WinnerID = winner
		session.EndedAt = endedAt

		data, err := json.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(round), data, s.cfg.RetiredSessionTTL)
			if active == round {
				pipe.Del(ctx, activeSessionKey())
			}
			return nil
		})
		if err != nil {
			return err
		}
		retired = true
		return nil
	}, sessionKey(round), activeSessionKey())
	if err != nil {
		return false, err
	}
	return retired, nil
}

func (s *Storage) AssignSecret(ctx context.Context, round model.RoundID, secret int) (int, error) {
	var stored int

	err := s.transact(ctx, func(tx *redis.Tx) error {
		session, err := getSession(ctx, tx, round)
		if err != nil {
			return err
		}
		if session.SecretNumber != 0 {
			stored = session.SecretNumber
			return nil
		}

		session.SecretNumber = secret
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(round), data, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		stored = secret
		return nil
	}, sessionKey(round))
	if err != nil {
		return 0, err
	}
	return stored, nil
}
