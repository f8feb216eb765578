// Package sqlite is a storage backend on a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Config holds SQLite settings
type Config struct {
	// Path is the database file, or ":memory:" for a private in-memory database
	Path string

	// BusyTimeout is how long a writer waits on a locked database
	BusyTimeout time.Duration
}

// DefaultConfig returns sensible defaults for SQLite configuration
func DefaultConfig() Config {
	return Config{
		Path:        "./data/guessgame.db",
		BusyTimeout: 5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	user_id           TEXT PRIMARY KEY,
	nickname          TEXT NOT NULL,
	active            INTEGER NOT NULL DEFAULT 0,
	most_recent_round INTEGER NOT NULL DEFAULT 0,
	wins              INTEGER NOT NULL DEFAULT 0,
	total_games       INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL DEFAULT 0,
	updated_at        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	round_id   INTEGER PRIMARY KEY,
	secret     INTEGER NOT NULL DEFAULT 0,
	active     INTEGER NOT NULL DEFAULT 0,
	winner_id  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL DEFAULT 0,
	ended_at   INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS sessions_single_active ON sessions(active) WHERE active = 1;
`

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// New opens (creating if missing) the database and applies the schema
func New(cfg Config) (*Storage, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_txlock=immediate&_journal_mode=WAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// One connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Timestamps are stored as unix milliseconds, 0 for the zero time

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Player operations

const playerColumns = `user_id, nickname, active, most_recent_round, wins, total_games, created_at, updated_at`

func scanPlayer(row rowScanner) (*model.Player, error) {
	var (
		p                model.Player
		created, updated int64
		mostRecent       int64
	)
	err := row.Scan(&p.UserID, &p.Nickname, &p.Active, &mostRecent, &p.Wins, &p.TotalGames, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	p.MostRecentRound = model.RoundID(mostRecent)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.UserID) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = ?`, id)
	return scanPlayer(row)
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []*model.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.UserID, fn storage.PlayerUpdate) (*model.Player, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanPlayer(tx.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = ?`, id))
	if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	updated, err := fn(existing)
	if err != nil || updated == nil {
		return nil, err
	}
	updated = updated.Clone()
	updated.UserID = id

	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (`+playerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			nickname = excluded.nickname,
			active = excluded.active,
			most_recent_round = excluded.most_recent_round,
			wins = excluded.wins,
			total_games = excluded.total_games,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		updated.UserID, updated.Nickname, updated.Active, int64(updated.MostRecentRound),
		updated.Wins, updated.TotalGames, toMillis(updated.CreatedAt), toMillis(updated.UpdatedAt))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// Session operations

const sessionColumns = `round_id, secret, active, winner_id, created_at, ended_at`

func scanSession(row rowScanner) (*model.GameSession, error) {
	var (
		sess           model.GameSession
		round          int64
		created, ended int64
	)
	err := row.Scan(&round, &sess.SecretNumber, &sess.Active, &sess.WinnerID, &created, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	sess.RoundID = model.RoundID(round)
	sess.CreatedAt = fromMillis(created)
	sess.EndedAt = fromMillis(ended)
	return &sess, nil
}

func (s *Storage) GetOrCreateActiveSession(ctx context.Context, create model.SessionFactory) (*model.GameSession, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	active, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE active = 1`))
	if err == nil {
		return active, false, nil
	}
	if !errors.Is(err, model.ErrSessionNotFound) {
		return nil, false, err
	}

	var maxRound int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(round_id), 0) FROM sessions`).Scan(&maxRound); err != nil {
		return nil, false, err
	}

	round := model.RoundID(maxRound + 1)
	session := create(round).Clone()
	session.RoundID = round
	session.Active = true

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, 1, ?, ?, ?)`,
		int64(round), session.SecretNumber, session.WinnerID, toMillis(session.CreatedAt), toMillis(session.EndedAt))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *Storage) GetSession(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE round_id = ?`, int64(round))
	return scanSession(row)
}

func (s *Storage) sessionExists(ctx context.Context, round model.RoundID) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE round_id = ?`, int64(round)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrSessionNotFound
	}
	return err
}

func (s *Storage) RetireSession(ctx context.Context, round model.RoundID, winner model.UserID, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0, winner_id = ?, ended_at = ? WHERE round_id = ? AND active = 1`,
		winner, toMillis(endedAt), int64(round))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	return false, s.sessionExists(ctx, round)
}

func (s *Storage) AssignSecret(ctx context.Context, round model.RoundID, secret int) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET secret = ? WHERE round_id = ? AND secret = 0`, secret, int64(round))
	if err != nil {
		return 0, err
	}

	var stored int
	err = s.db.QueryRowContext(ctx, `SELECT secret FROM sessions WHERE round_id = ?`, int64(round)).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrSessionNotFound
		}
		return 0, err
	}
	return stored, nil
}
