package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/guessgame/internal/api"
	"github.com/mcoot/guessgame/internal/factory"
	"github.com/mcoot/guessgame/internal/services/auth"
	mongostorage "github.com/mcoot/guessgame/internal/storage/mongo"
	redisstorage "github.com/mcoot/guessgame/internal/storage/redis"
	sqlitestorage "github.com/mcoot/guessgame/internal/storage/sqlite"
)

// Config holds server settings gathered from flags and GUESSGAME_* env vars
type Config struct {
	bind            string
	port            int
	logLevel        string
	publicURL       string
	staticDir       string
	storage         string
	redisURL        string
	sqlitePath      string
	mongoURI        string
	mongoDatabase   string
	channelSecret   string
	channelTTL      time.Duration
	sessionDuration time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.storage {
	case factory.StorageTypeMemory, factory.StorageTypeRedis, factory.StorageTypeSQLite, factory.StorageTypeMongo:
	default:
		return fmt.Errorf("unknown storage type %q (want memory, redis, sqlite or mongo)", c.storage)
	}
	if c.sessionDuration <= 0 {
		return errors.New("--session-duration must be positive")
	}
	if c.channelTTL <= 0 {
		return errors.New("--channel-ttl must be positive")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	return level, nil
}

// joinURL is where players are sent by the join QR code
func (c *Config) joinURL() string {
	if c.publicURL != "" {
		return c.publicURL
	}
	host := c.bind
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/", host, c.port)
}

func (c *Config) serverConfig() api.ServerConfig {
	sc := api.DefaultServerConfig()
	sc.Host = c.bind
	sc.Port = c.port
	sc.ReadTimeout = c.readTimeout
	sc.WriteTimeout = c.writeTimeout
	sc.ShutdownTimeout = c.shutdownTimeout
	return sc
}

func (c *Config) factoryConfig(logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		AuthConfig:  auth.Config{SessionDuration: c.sessionDuration},
		Logger:      logger,
		StorageType: c.storage,
		ChannelTTL:  c.channelTTL,
	}
	if c.channelSecret != "" {
		cfg.ChannelSecret = []byte(c.channelSecret)
	}

	switch c.storage {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.redisURL
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypeSQLite:
		sqliteCfg := sqlitestorage.DefaultConfig()
		sqliteCfg.Path = c.sqlitePath
		cfg.SQLiteConfig = &sqliteCfg
	case factory.StorageTypeMongo:
		mongoCfg := mongostorage.DefaultConfig()
		mongoCfg.URI = c.mongoURI
		mongoCfg.Database = c.mongoDatabase
		cfg.MongoConfig = &mongoCfg
	}

	return cfg
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GUESSGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	serverDefaults := api.DefaultServerConfig()
	redisDefaults := redisstorage.DefaultConfig()
	sqliteDefaults := sqlitestorage.DefaultConfig()
	mongoDefaults := mongostorage.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the number guessing game over HTTP",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GUESSGAME_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", serverDefaults.Port, "port to listen on (env: GUESSGAME_PORT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error (env: GUESSGAME_LOG_LEVEL)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "externally reachable URL encoded in the join QR code (env: GUESSGAME_PUBLIC_URL)")
	fs.StringVar(&cfg.staticDir, "static-dir", "", "directory served under /static/ (env: GUESSGAME_STATIC_DIR)")
	fs.StringVar(&cfg.storage, "storage", factory.StorageTypeMemory, "storage backend: memory, redis, sqlite or mongo (env: GUESSGAME_STORAGE)")
	fs.StringVar(&cfg.redisURL, "redis-url", redisDefaults.URL, "redis connection URL (env: GUESSGAME_REDIS_URL)")
	fs.StringVar(&cfg.sqlitePath, "sqlite-path", sqliteDefaults.Path, "sqlite database file (env: GUESSGAME_SQLITE_PATH)")
	fs.StringVar(&cfg.mongoURI, "mongo-uri", mongoDefaults.URI, "mongodb connection URI (env: GUESSGAME_MONGO_URI)")
	fs.StringVar(&cfg.mongoDatabase, "mongo-database", mongoDefaults.Database, "mongodb database name (env: GUESSGAME_MONGO_DATABASE)")
	fs.StringVar(&cfg.channelSecret, "channel-secret", "", "secret signing realtime channel tokens, random if unset (env: GUESSGAME_CHANNEL_SECRET)")
	fs.DurationVar(&cfg.channelTTL, "channel-ttl", factory.DefaultChannelTTL, "lifetime of realtime channel tokens (env: GUESSGAME_CHANNEL_TTL)")
	fs.DurationVar(&cfg.sessionDuration, "session-duration", auth.DefaultConfig().SessionDuration, "lifetime of player sessions (env: GUESSGAME_SESSION_DURATION)")
	fs.DurationVar(&cfg.readTimeout, "read-timeout", serverDefaults.ReadTimeout, "HTTP read timeout (env: GUESSGAME_READ_TIMEOUT)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", serverDefaults.WriteTimeout, "HTTP write timeout (env: GUESSGAME_WRITE_TIMEOUT)")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", serverDefaults.ShutdownTimeout, "graceful shutdown timeout (env: GUESSGAME_SHUTDOWN_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
