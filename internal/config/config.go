// Package config loads all server settings from the environment.
//
// A .env file in the working directory is loaded first (development
// convenience — production deployments set real env vars). Every setting has
// a default except the two signing secrets; the session secret is validated
// here so a weak deployment fails at startup rather than at first login.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full server configuration.
type Config struct {
	Port   int
	DBPath string

	// First-party session tokens.
	JWTSecret    string
	JWTExpiresIn time.Duration

	// Supabase: object storage and the federated identity provider.
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	SupabaseJWTSecret  string

	CORSAllowedOrigins []string

	MaxFileSize    int64 // per-file limit for multipart uploads
	MaxRequestSize int64 // whole-request limit enforced by the transport

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	FrontendURL string
}

// defaultMailFrom is the placeholder sender address. SMTP is considered
// unconfigured while the username still equals this value.
const defaultMailFrom = "noreply@drivex.com"

// Load reads the configuration from the environment, applying defaults.
// Returns an error if a required secret is missing or too weak.
func Load() (*Config, error) {
	// Ignore the error: a missing .env just means everything comes from
	// the real environment.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               envInt("PORT", 8080),
		DBPath:             envStr("DB_PATH", "data/drivex.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTExpiresIn:       time.Duration(envInt("JWT_EXPIRES_IN", 3600)) * time.Second,
		SupabaseURL:        strings.TrimRight(envStr("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     envStr("SUPABASE_BUCKET", "drivex"),
		SupabaseJWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		MaxFileSize:        envInt64("MAX_FILE_SIZE", 50*1024*1024),
		MaxRequestSize:     envInt64("MAX_REQUEST_SIZE", 55*1024*1024),
		SMTPHost:           envStr("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:           envInt("SMTP_PORT", 587),
		SMTPUsername:       envStr("SMTP_USERNAME", defaultMailFrom),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		MailFrom:           envStr("MAIL_FROM", defaultMailFrom),
		FrontendURL:        strings.TrimRight(envStr("FRONTEND_URL", "http://localhost:3000"), "/"),
	}

	// HMAC-SHA256 needs a key at least as long as the digest; anything
	// shorter is brute-forceable. Refuse to start with a weak secret.
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least 32 bytes, got %d", len(cfg.JWTSecret))
	}
	if cfg.JWTExpiresIn <= 0 {
		return nil, fmt.Errorf("config: JWT_EXPIRES_IN must be positive")
	}

	return cfg, nil
}

// SMTPConfigured reports whether real mail sending is possible: a non-default
// username and a non-empty password. Otherwise the dispatcher degrades to
// log-only delivery.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPUsername != "" && c.SMTPUsername != defaultMailFrom && c.SMTPPassword != ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envList(key, def string) []string {
	raw := envStr(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
