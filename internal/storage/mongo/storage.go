// Package mongo is a storage backend on MongoDB.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mcoot/guessgame/internal/model"
	"github.com/mcoot/guessgame/internal/storage"
)

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string

	ConnectTimeout time.Duration

	// MaxRetries bounds optimistic retries on version or key conflicts
	MaxRetries int
}

// DefaultConfig returns sensible defaults for MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "guessgame",
		ConnectTimeout: 10 * time.Second,
		MaxRetries:     50,
	}
}

const (
	playersCollection  = "players"
	sessionsCollection = "sessions"
)

type playerDoc struct {
	UserID          string    `bson:"_id"`
	Nickname        string    `bson:"nickname"`
	Active          bool      `bson:"active"`
	MostRecentRound int64     `bson:"most_recent_round"`
	Wins            int       `bson:"wins"`
	TotalGames      int       `bson:"total_games"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
	Version         int64     `bson:"version"`
}

func toPlayerDoc(p *model.Player, version int64) playerDoc {
	return playerDoc{
		UserID:          string(p.UserID),
		Nickname:        p.Nickname,
		Active:          p.Active,
		MostRecentRound: int64(p.MostRecentRound),
		Wins:            p.Wins,
		TotalGames:      p.TotalGames,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         version,
	}
}

func (d playerDoc) toModel() *model.Player {
	return &model.Player{
		UserID:          model.UserID(d.UserID),
		Nickname:        d.Nickname,
		Active:          d.Active,
		MostRecentRound: model.RoundID(d.MostRecentRound),
		Wins:            d.Wins,
		TotalGames:      d.TotalGames,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

type sessionDoc struct {
	RoundID      int64     `bson:"_id"`
	SecretNumber int       `bson:"secret"`
	Active       bool      `bson:"active"`
	WinnerID     string    `bson:"winner_id"`
	CreatedAt    time.Time `bson:"created_at"`
	EndedAt      time.Time `bson:"ended_at"`
}

func toSessionDoc(s *model.GameSession) sessionDoc {
	return sessionDoc{
		RoundID:      int64(s.RoundID),
		SecretNumber: s.SecretNumber,
		Active:       s.Active,
		WinnerID:     string(s.WinnerID),
		CreatedAt:    s.CreatedAt,
		EndedAt:      s.EndedAt,
	}
}

func (d sessionDoc) toModel() *model.GameSession {
	return &model.GameSession{
		RoundID:      model.RoundID(d.RoundID),
		SecretNumber: d.SecretNumber,
		Active:       d.Active,
		WinnerID:     model.UserID(d.WinnerID),
		CreatedAt:    d.CreatedAt.UTC(),
		EndedAt:      d.EndedAt.UTC(),
	}
}

// Storage is a MongoDB-backed implementation of the storage interface
type Storage struct {
	client   *mongo.Client
	db       *mongo.Database
	players  *mongo.Collection
	sessions *mongo.Collection
	cfg      Config
}

// New connects to MongoDB and ensures the required indexes exist
func New(ctx context.Context, cfg Config) (*Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s := &Storage{
		client: client,
		db:     client.Database(cfg.Database),
		cfg:    cfg,
	}
	s.players = s.db.Collection(playersCollection)
	s.sessions = s.db.Collection(sessionsCollection)

	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "active", Value: 1}},
		Options: options.Index().
			SetName("single_active").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"active": true}),
	})
	return err
}

// Close disconnects from MongoDB
func (s *Storage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the database, used by tests
func (s *Storage) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) retries() int {
	if s.cfg.MaxRetries <= 0 {
		return 1
	}
	return s.cfg.MaxRetries
}

// Player operations

func (s *Storage) getPlayerDoc(ctx context.Context, id model.UserID) (*playerDoc, error) {
	var doc playerDoc
	err := s.players.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.UserID) (*model.Player, error) {
	doc, err := s.getPlayerDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	cursor, err := s.players.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	players := []*model.Player{}
	for cursor.Next(ctx) {
		var doc playerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		players = append(players, doc.toModel())
	}
	return players, cursor.Err()
}

// UpdatePlayer uses a version field for optimistic concurrency: the write
// only lands if nobody else wrote the document since it was read.
func (s *Storage) UpdatePlayer(ctx context.Context, id model.UserID, fn storage.PlayerUpdate) (*model.Player, error) {
	for range s.retries() {
		doc, err := s.getPlayerDoc(ctx, id)
		if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
			return nil, err
		}

		var existing *model.Player
		if doc != nil {
			existing = doc.toModel()
		}

		updated, err := fn(existing)
		if err != nil || updated == nil {
			return nil, err
		}
		updated = updated.Clone()
		updated.UserID = id

		if doc == nil {
			_, err := s.players.InsertOne(ctx, toPlayerDoc(updated, 1))
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return updated, nil
		}

		res, err := s.players.ReplaceOne(ctx,
			playerVersionFilter(id, doc.Version),
			toPlayerDoc(updated, doc.Version+1))
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			continue
		}
		return updated, nil
	}
	return nil, model.ErrStorageConflict
}

// playerVersionFilter matches id at the version it was read at. Documents
// written without a version field decode as 0 and match as such.
func playerVersionFilter(id model.UserID, version int64) bson.M {
	if version == 0 {
		return bson.M{
			"_id": string(id),
			"$or": bson.A{
				bson.M{"version": int64(0)},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}
	return bson.M{"_id": string(id), "version": version}
}

// Session operations

func (s *Storage) findSession(ctx context.Context, filter any, opts ...*options.FindOneOptions) (*model.GameSession, error) {
	var doc sessionDoc
	err := s.sessions.FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Storage) GetOrCreateActiveSession(ctx context.Context, create model.SessionFactory) (*model.GameSession, bool, error) {
	for range s.retries() {
		active, err := s.findSession(ctx, bson.M{"active": true})
		if err == nil {
			return active, false, nil
		}
		if !errors.Is(err, model.ErrSessionNotFound) {
			return nil, false, err
		}

		var maxRound model.RoundID
		latest, err := s.findSession(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}))
		switch {
		case err == nil:
			maxRound = latest.RoundID
		case !errors.Is(err, model.ErrSessionNotFound):
			return nil, false, err
		}

		round := maxRound + 1
		session := create(round).Clone()
		session.RoundID = round
		session.Active = true

		// Either the round id or the single-active index rejects a racing insert
		_, err = s.sessions.InsertOne(ctx, toSessionDoc(session))
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return session, true, nil
	}
	return nil, false, model.ErrStorageConflict
}

func (s *Storage) GetSession(ctx context.Context, round model.RoundID) (*model.GameSession, error) {
	return s.findSession(ctx, bson.M{"_id": int64(round)})
}

func (s *Storage) sessionExists(ctx context.Context, round model.RoundID) error {
	n, err := s.sessions.CountDocuments(ctx, bson.M{"_id": int64(round)})
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Storage) RetireSession(ctx context.Context, round model.RoundID, winner model.UserID, endedAt time.Time) (bool, error) {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": int64(round), "active": true},
		bson.M{"$set": bson.M{"active": false, "winner_id": string(winner), "ended_at": endedAt}})
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	return false, s.sessionExists(ctx, round)
}

func (s *Storage) AssignSecret(ctx context.Context, round model.RoundID, secret int) (int, error) {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": int64(round), "secret": 0},
		bson.M{"$set": bson.M{"secret": secret}})
	if err != nil {
		return 0, err
	}

	session, err := s.GetSession(ctx, round)
	if err != nil {
		return 0, err
	}
	return session.SecretNumber, nil
}
