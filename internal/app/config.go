package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (COURSEMART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage      string `default:"postgres" usage:"Coupon and order storage: postgres or memory"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (COURSEMART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxConns     int32  `default:"10" usage:"Maximum PostgreSQL pool connections" flag:"max-conns"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (COURSEMART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	AdminAPIKey  string `usage:"Admin API key accepted in memory storage mode" flag:"admin-api-key"`
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig enables the coupon snapshot cache when Addr is set.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address, empty disables the coupon cache (or REDIS_URL)"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	TTL      time.Duration `default:"30s" usage:"Coupon snapshot TTL"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and command-line flags, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(nil)
}

// loadConfig parses flags from args, or from os.Args when args is nil.
func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COURSEMART",
		Files:     []string{"config.yaml", "/etc/coursemart/config.yaml"},
		Args:      args,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL, PORT
// and REDIS_URL to the application's configuration.
func (c *Config) applyPlatformDefaults() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.Redis.Addr == "" {
		opts, err := redis.ParseURL(v)
		if err != nil {
			return errors.Wrap(err, "parse REDIS_URL")
		}
		c.Redis.Addr = opts.Addr
		c.Redis.Password = opts.Password
		c.Redis.DB = opts.DB
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set COURSEMART_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.New("redis TTL must be positive")
	}
	return nil
}
