package factory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/guessgame/internal/dependencies/clock"
	"github.com/mcoot/guessgame/internal/dependencies/random"
	"github.com/mcoot/guessgame/internal/events"
	"github.com/mcoot/guessgame/internal/realtime"
	"github.com/mcoot/guessgame/internal/services/auth"
	"github.com/mcoot/guessgame/internal/services/game"
	"github.com/mcoot/guessgame/internal/services/notify"
	"github.com/mcoot/guessgame/internal/services/play"
	"github.com/mcoot/guessgame/internal/services/registry"
	"github.com/mcoot/guessgame/internal/storage"
	"github.com/mcoot/guessgame/internal/storage/memory"
	mongostorage "github.com/mcoot/guessgame/internal/storage/mongo"
	redisstorage "github.com/mcoot/guessgame/internal/storage/redis"
	sqlitestorage "github.com/mcoot/guessgame/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
	StorageTypeMongo  = "mongo"
)

// DefaultChannelTTL is how long a channel token stays valid
const DefaultChannelTTL = 24 * time.Hour

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Events          *events.Bus
	GameManager     *game.Manager
	Registry        *registry.Registry
	NotifyHub       *notify.Hub
	PlayController  *play.Controller
	AuthService     *auth.Service
	RealtimeHub     *realtime.Hub
	ChannelTokens   *realtime.TokenIssuer
	RealtimeHandler *realtime.Handler

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend: memory, redis, sqlite or mongo
	// If empty, defaults to "memory"
	StorageType string
	// Backend settings, required for the matching StorageType
	RedisConfig  *redisstorage.Config
	SQLiteConfig *sqlitestorage.Config
	MongoConfig  *mongostorage.Config
	// ChannelSecret signs channel tokens. If empty a random one is generated,
	// which invalidates tokens across restarts.
	ChannelSecret []byte
	ChannelTTL    time.Duration
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	secret := cfg.ChannelSecret
	if len(secret) == 0 {
		secret, err = randomSecret()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Warn("no channel secret configured, generated one for this process")
	}

	return newWithDependencies(store, clk, rnd, authCfg, secret, cfg.ChannelTTL, logger), nil
}

// NewStorage opens the storage backend selected by cfg.StorageType
func NewStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLiteConfig == nil {
			return nil, errors.New("SQLiteConfig required when StorageType is sqlite")
		}
		return sqlitestorage.New(*cfg.SQLiteConfig)
	case StorageTypeMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		return mongostorage.New(ctx, *cfg.MongoConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or mongo", storageType)
	}
}

func randomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate channel secret: %w", err)
	}
	return secret, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	channelSecret []byte,
	channelTTL time.Duration,
	logger *slog.Logger,
) *App {
	if channelTTL == 0 {
		channelTTL = DefaultChannelTTL
	}

	bus := events.NewBus(logger)
	manager := game.NewManager(store, clk, rnd, logger)
	reg := registry.New(store, manager, bus, clk, logger)

	realtimeHub := realtime.NewHub(nil, clk, logger)
	tokens := realtime.NewTokenIssuer(channelSecret, channelTTL, clk)

	notifyHub := notify.NewHub(reg, manager, realtimeHub, logger)
	notifyHub.Subscribe(bus)

	controller := play.NewController(manager, reg, notifyHub, tokens, bus, clk, logger)
	realtimeHub.SetListener(controller)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Events:          bus,
		GameManager:     manager,
		Registry:        reg,
		NotifyHub:       notifyHub,
		PlayController:  controller,
		AuthService:     auth.New(clk, authCfg),
		RealtimeHub:     realtimeHub,
		ChannelTokens:   tokens,
		RealtimeHandler: realtime.NewHandler(realtimeHub, tokens, logger),
		Logger:          logger,
	}
}

// Run runs the background loops (realtime hub, session cleanup) until ctx is done
func (a *App) Run(ctx context.Context) {
	go a.AuthService.RunCleanup(ctx, 5*time.Minute)
	a.RealtimeHub.Run(ctx)
}

// Close releases the storage backend
func (a *App) Close() error {
	a.RealtimeHub.Close()
	return a.Storage.Close()
}
