package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. The signing secret is the only hard
// requirement: without it the process must not start.
const (
	envSecret       = "SIM_AUTH_SECRET"
	envDSN          = "SIM_PG_DSN"
	envAddr         = "SIM_HTTP_ADDR"
	envEnv          = "SIM_ENV"
	envCookieSecure = "SIM_COOKIE_SECURE"
	envSessionTTL   = "SIM_SESSION_TTL"
)

const defaultSessionTTL = 7 * 24 * time.Hour

var ErrMissingSecret = errors.New("config: " + envSecret + " is not set")

// Config carries process-wide settings loaded once at startup.
type Config struct {
	// TokenSecret signs session tokens. Rotating it invalidates every
	// outstanding token.
	TokenSecret string

	// DSN is the PostgreSQL connection string. Empty means the API starts
	// without a database (health endpoints only), which is useful locally.
	DSN string

	Addr         string
	Env          string
	CookieSecure bool
	SessionTTL   time.Duration
}

// Load reads configuration from the environment, with an optional .env file
// for local development. A missing token secret is a startup error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TokenSecret: strings.TrimSpace(os.Getenv(envSecret)),
		DSN:         strings.TrimSpace(os.Getenv(envDSN)),
		Addr:        strings.TrimSpace(os.Getenv(envAddr)),
		Env:         strings.TrimSpace(strings.ToLower(os.Getenv(envEnv))),
		SessionTTL:  defaultSessionTTL,
	}
	if cfg.TokenSecret == "" {
		return Config{}, ErrMissingSecret
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}

	// Secure cookies default on outside development, with an explicit override.
	cfg.CookieSecure = cfg.Env == "production"
	if raw := strings.TrimSpace(os.Getenv(envCookieSecure)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", envCookieSecure, err)
		}
		cfg.CookieSecure = v
	}

	if raw := strings.TrimSpace(os.Getenv(envSessionTTL)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: parse %s: %q is not a positive duration", envSessionTTL, raw)
		}
		cfg.SessionTTL = d
	}

	return cfg, nil
}
