// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Addr     string
	Env      string
	LogLevel string

	RosterPath string

	AdminSecretCode string
	SessionSecret   string
	SessionTTL      time.Duration

	PresenceStaleAfter time.Duration
	PresenceSweepSpec  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	DatabaseURL    string
	AllowedOrigins []string
}

const (
	defaultAddr               = ":8080"
	defaultEnv                = "development"
	defaultLogLevel           = "info"
	defaultRosterPath         = "configs/roster.yaml"
	defaultSessionTTL         = 7 * 24 * time.Hour
	defaultPresenceStaleAfter = 60 * time.Second
	defaultPresenceSweepSpec  = "@every 30s"
	defaultRedisChannel       = "secret-santa-game"
)

var ErrMissingSessionSecret = errors.New("SESSION_SECRET is required in production")

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:               getEnv("ADDR", defaultAddr),
		Env:                getEnv("APP_ENV", defaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", defaultLogLevel),
		RosterPath:         getEnv("ROSTER_PATH", defaultRosterPath),
		AdminSecretCode:    os.Getenv("ADMIN_SECRET_CODE"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionTTL:         defaultSessionTTL,
		PresenceStaleAfter: defaultPresenceStaleAfter,
		PresenceSweepSpec:  getEnv("PRESENCE_SWEEP_SPEC", defaultPresenceSweepSpec),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisChannel:       getEnv("REDIS_CHANNEL", defaultRedisChannel),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AllowedOrigins:     parseList(os.Getenv("ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.PresenceStaleAfter, err = getDuration("PRESENCE_STALE_AFTER", defaultPresenceStaleAfter); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Config{}, fmt.Errorf("REDIS_DB: invalid value %q", raw)
		}
		cfg.RedisDB = v
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return Config{}, ErrMissingSessionSecret
		}
		// Sessions will not survive a restart.
		cfg.SessionSecret = uuid.NewString()
	}

	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
