package users

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiry is the token lifetime used when none is configured
const DefaultTokenExpiry = 24 * time.Hour

// Config holds every knob this package consumes. It is built once at
// process start and passed by reference into the token service and the
// accounts service; nothing reads the environment at call sites.
type Config struct {
	// SigningSecret signs bearer tokens. Required: the process must not
	// start without it.
	SigningSecret string `env:"AUTH_SIGNING_SECRET"`
	// TokenExpiry bounds token validity
	TokenExpiry time.Duration `env:"AUTH_TOKEN_EXPIRY" envDefault:"24h"`
	// Issuer and Audience are stamped into and checked against claims
	// when set
	Issuer   string   `env:"AUTH_TOKEN_ISSUER"`
	Audience []string `env:"AUTH_TOKEN_AUDIENCE" envSeparator:","`
	// HashCost is the bcrypt work factor
	HashCost int `env:"AUTH_HASH_COST" envDefault:"12"`
}

// LoadConfig parses configuration from environment variables and
// validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to parse configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration that must stop the process at start
func (c *Config) Validate() error {
	if c.SigningSecret == "" {
		return ErrMissingSigningSecret
	}

	if c.TokenExpiry <= 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}

	if c.HashCost == 0 {
		c.HashCost = DefaultHashCost
	}

	return nil
}
