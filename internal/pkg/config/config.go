package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// MinWorkspaceIdleTTL bounds WORKSPACE_IDLE_TTL from below; the sweeper ticks
// at half of it.
const MinWorkspaceIdleTTL = time.Second

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// WorkspaceIdleTTL is how long an untouched browser workspace stays in memory.
	WorkspaceIdleTTL time.Duration `env:"WORKSPACE_IDLE_TTL, default=30m"`

	// Login attempts per second and burst, per remote address.
	LoginRate  float64 `env:"LOGIN_RATE_LIMIT, default=1"`
	LoginBurst int     `env:"LOGIN_BURST,      default=5"`

	API           APIConfig
	Session       SessionConfig
	Notifications NotificationConfig
	Mongo         MongoConfig
	Redis         RedisConfig
}

type APIConfig struct {
	BaseURL string `env:"LMS_API_BASE_URL, default=http://localhost:8000/api/"`
	// Timeout of zero leaves requests bound only by the caller's context.
	Timeout     time.Duration `env:"LMS_API_TIMEOUT, default=0s"`
	RefreshPath string        `env:"LMS_API_REFRESH_PATH"`
}

type SessionConfig struct {
	// Backend selects credential persistence: memory, redis or mongo.
	Backend      string        `env:"SESSION_BACKEND,       default=memory"`
	StorageKey   string        `env:"SESSION_STORAGE_KEY,   default=lms_token"`
	TTL          time.Duration `env:"SESSION_TTL,           default=168h"`
	CookieName   string        `env:"SESSION_COOKIE_NAME,   default=lms_client"`
	SecureCookie bool          `env:"SESSION_COOKIE_SECURE, default=false"`
}

type NotificationConfig struct {
	TTL     time.Duration `env:"NOTIFICATION_TTL,     default=5s"`
	Workers int           `env:"NOTIFICATION_WORKERS, default=4"`
}

type MongoConfig struct {
	URI        string `env:"MONGO_URI,        default=mongodb://localhost:27017"`
	Database   string `env:"MONGO_DB,         default=lms_web"`
	Collection string `env:"MONGO_COLLECTION, default=credentials"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsDevelopment reports whether human-readable logs should be used.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration through the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	switch cfg.Session.Backend {
	case "memory", "redis", "mongo":
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be one of memory, redis, mongo; got %q", cfg.Session.Backend)
	}
	if cfg.LoginRate <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_LIMIT must be positive; got %v", cfg.LoginRate)
	}
	if cfg.WorkspaceIdleTTL < MinWorkspaceIdleTTL {
		return nil, fmt.Errorf("WORKSPACE_IDLE_TTL must be at least %v; got %v", MinWorkspaceIdleTTL, cfg.WorkspaceIdleTTL)
	}
	if cfg.Notifications.Workers < 1 {
		cfg.Notifications.Workers = 1
	}
	return &cfg, nil
}
