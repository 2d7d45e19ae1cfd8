// Package config loads walletauth configuration from the environment.
//
// # Environment Variables
//
//   - APP_NAME: Name shown in the human-readable challenge. Default: WalletAuth
//   - CLIENT_URL: Public URL of the client; its hostname is the challenge domain.
//   - ENV: production or development. Default: production
//   - PORT: HTTP port. Default: 9000
//   - LOG_LEVEL: debug, info, warn, error. Default: info
//   - CACHE_DRIVER: memory or redis. Default: memory
//   - REDIS_URL: Redis connection URL. Default: redis://localhost:6379/0
//   - STORE_DRIVER: memory or mongo. Default: memory
//   - MONGO_URI, MONGO_DATABASE: MongoDB connection (replica set, transactions are used)
//   - SIGNING_KEY_FILE: PEM encoded P-256 key for ES256 tokens. Empty generates one.
//   - ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL, NONCE_TTL: Go durations.
//   - EVENTS_DRIVER: log or redis. Default: log
//   - EVENTS_TOPIC: Audit topic. Default: walletauth.audit
//   - ED25519_ADDRESS_BINDING: Require Ed25519 keys to derive the claimed address. Default: true
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverLog    = "log"
)

// Config is the service configuration, read from the environment
type Config struct {
	AppName   string `mapstructure:"APP_NAME"`
	ClientURL string `mapstructure:"CLIENT_URL"`
	Env       string `mapstructure:"ENV"`
	Port      int    `mapstructure:"PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`

	CacheDriver string `mapstructure:"CACHE_DRIVER"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	SigningKeyFile  string        `mapstructure:"SIGNING_KEY_FILE"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	NonceTTL        time.Duration `mapstructure:"NONCE_TTL"`

	EventsDriver string `mapstructure:"EVENTS_DRIVER"`
	EventsTopic  string `mapstructure:"EVENTS_TOPIC"`

	Ed25519AddressBinding bool `mapstructure:"ED25519_ADDRESS_BINDING"`
}

// LoadConfig reads Config from the environment over the defaults and validates it
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetDefault("APP_NAME", "WalletAuth")
	v.SetDefault("CLIENT_URL", "http://localhost:3000")
	v.SetDefault("ENV", "production")
	v.SetDefault("PORT", 9000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_DRIVER", DriverMemory)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MONGO_DATABASE", "walletauth")
	v.SetDefault("SIGNING_KEY_FILE", "")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("NONCE_TTL", 5*time.Minute)
	v.SetDefault("EVENTS_DRIVER", DriverLog)
	v.SetDefault("EVENTS_TOPIC", "walletauth.audit")
	v.SetDefault("ED25519_ADDRESS_BINDING", true)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("APP_NAME is required")
	}
	if _, err := c.Hostname(); err != nil {
		return err
	}
	switch c.CacheDriver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver)
	}
	switch c.StoreDriver {
	case DriverMemory, DriverMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.EventsDriver {
	case DriverLog, DriverRedis:
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}
	if c.NonceTTL <= 0 || c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token and nonce TTLs must be positive")
	}
	return nil
}

// Hostname is the domain challenges are bound to
func (c *Config) Hostname() (string, error) {
	u, err := url.Parse(c.ClientURL)
	if err != nil {
		return "", fmt.Errorf("invalid CLIENT_URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid CLIENT_URL %q: missing host", c.ClientURL)
	}
	return u.Hostname(), nil
}

// Development reports whether error details may be exposed
func (c *Config) Development() bool {
	return c.Env == "development"
}
