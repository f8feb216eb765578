package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players  map[model.UserID]*model.Player
	sessions map[model.RoundID]*model.GameSession
	active   model.RoundID // 0 when no round is active
	maxRound model.RoundID

	// per-player locks serialize UpdatePlayer on the same key
	keyLocksMu sync.Mutex
	keyLocks   map[model.UserID]*sync.Mutex
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:  make(map[model.UserID]*model.Player),
		sessions: make(map[model.RoundID]*model.GameSession),
		keyLocks: make(map[model.UserID]*sync.Mutex),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) GetPlayer(ctx context.Context, id model.UserID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player.Clone(), nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p.Clone())
	}
	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.UserID, fn storage.PlayerUpdate) (*model.Player, error) {
	lock := s.keyLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	existing := s.players[id].Clone()
	s.mu.RUnlock()

	updated, err := fn(existing)
	if err != nil || updated == nil {
		return nil, err
	}
	updated = updated.Clone()
	updated.UserID = id

	s.mu.Lock()
	s.players[id] = updated
	s.mu.Unlock()

	return updated.Clone(), nil
}

func (s *Storage) keyLock(id model.UserID) *sync.Mutex {
	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()

	lock, ok := s.keyLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.keyLocks[id] = lock
	}
	return lock
}

// Session operations

func (s *Storage) GetOrCreateActiveSession(ctx context.Context, create model.SessionFactory) (*model.GameSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != 0 {
		return s.sessions[s.active].Clone(), false, nil
	}

	round := s.maxRound + 1
	session := create(round).Clone()
	session.RoundID = round
	session.Active = true

	s.sessions[round] = session
	s.active = round
	s.maxRound = round

	return session.Clone(), true, nil
}

func (s *Storage) GetSession(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[round]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) RetireSession(ctx context.Context, round model.RoundID, winner model.UserID, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[round]
	if !ok {
		return false, model.ErrSessionNotFound
	}
	if !session.Active {
		return false, nil
	}

	session.Active = false
	session.WinnerID = winner
	session.EndedAt = endedAt
	if s.active == round {
		s.active = 0
	}
	return true, nil
}

func (s *Storage) AssignSecret(ctx context.Context, round model.RoundID, secret int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[round]
	if !ok {
		return 0, model.ErrSessionNotFound
	}
	if session.SecretNumber == 0 {
		session.SecretNumber = secret
	}
	return session.SecretNumber, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
