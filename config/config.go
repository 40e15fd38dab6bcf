package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `validate:"required,numeric"`
	GinMode  string `validate:"oneof=debug release test"`
	LogLevel string `validate:"oneof=debug info warn error"`

	UpstreamURL     string        `validate:"required,url"`
	UpstreamTimeout time.Duration `validate:"gt=0"`

	// MongoURI is optional; without it sessions live in memory only.
	MongoURI      string `validate:"omitempty,startswith=mongodb"`
	MongoDatabase string `validate:"required"`

	SessionSecret string        `validate:"required,min=16"`
	SessionTTL    time.Duration `validate:"gt=0"`
	CookieSecure  bool

	AllowedOrigins []string      `validate:"min=1,dive,url"`
	RateLimit      int           `validate:"gt=0"`
	RateWindow     time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	p := parser{}
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		GinMode:         getenv("GIN_MODE", "debug"),
		LogLevel:        strings.ToLower(getenv("LOG_LEVEL", "info")),
		UpstreamURL:     strings.TrimRight(getenv("UPSTREAM_API_URL", "http://localhost:8000/api"), "/"),
		UpstreamTimeout: p.duration("UPSTREAM_TIMEOUT", 30*time.Second),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getenv("MONGODB_DATABASE", "threadline"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      p.duration("SESSION_TTL", 24*time.Hour),
		CookieSecure:    p.boolean("COOKIE_SECURE", false),
		AllowedOrigins:  splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimit:       p.integer("RATE_LIMIT", 120),
		RateWindow:      p.duration("RATE_WINDOW", time.Minute),
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Release() bool {
	return c.GinMode == "release"
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (p *parser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
