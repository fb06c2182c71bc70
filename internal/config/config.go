package config

import (
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/hongminglow/medimate-be/internal/apperr"
	"github.com/hongminglow/medimate-be/internal/fieldcrypt"
)

// Config holds runtime configuration sourced from an optional YAML file and
// env vars. Env vars win.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	LogLevel    string

	JWTSecret        string
	JWTRefreshSecret string
	JWTIssuer        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	EncryptionKey []byte
	BcryptCost    int

	CORSOrigins    []string
	FrontendURL    string
	TrustedProxies []netip.Prefix

	VerificationTTL    time.Duration
	ResendWindow       time.Duration
	ResendMax          int
	ResendCooldown     time.Duration
	LoginGenericErrors bool

	RedisURL       string
	ResendIPLimit  int
	ResendIPWindow time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	SMTPTimeout  time.Duration

	OutboxBucket    string
	OutboxRegion    string
	OutboxEndpoint  string
	OutboxAccessKey string
	OutboxSecretKey string
}

// source resolves a key from the environment first, then the config file.
type source map[string]string

func (s source) get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback(s[key], def)
}

// raw returns the value untouched; key material may carry significant spaces.
func (s source) raw(key string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return s[key]
}

func (s source) int(key string, def int) int {
	n, err := strconv.Atoi(s.get(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s source) duration(key string, unit time.Duration, def int) time.Duration {
	return time.Duration(s.int(key, def)) * unit
}

func (s source) bool(key string) bool {
	b, err := strconv.ParseBool(s.get(key, "false"))
	return err == nil && b
}

// Load reads configuration and validates it. Every failure wraps
// apperr.ErrConfiguration.
func Load() (Config, error) {
	src, err := readFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", apperr.ErrConfiguration, err)
	}

	cfg := Config{
		Port:        src.get("PORT", "8080"),
		Env:         strings.ToLower(src.get("APP_ENV", "development")),
		DatabaseURL: src.get("DATABASE_URL", ""),
		LogLevel:    src.get("LOG_LEVEL", "info"),

		JWTSecret:        src.get("JWT_SECRET", ""),
		JWTRefreshSecret: src.get("JWT_REFRESH_SECRET", ""),
		JWTIssuer:        src.get("JWT_ISSUER", "medimate-backend"),
		AccessTTL:        src.duration("ACCESS_TOKEN_TTL_MINUTES", time.Minute, 60),
		RefreshTTL:       src.duration("REFRESH_TOKEN_TTL_HOURS", time.Hour, 168),

		BcryptCost: src.int("BCRYPT_COST", 12),

		FrontendURL: src.get("FRONTEND_URL", "http://localhost:3000"),

		VerificationTTL:    src.duration("VERIFICATION_TOKEN_TTL_HOURS", time.Hour, 24),
		ResendWindow:       src.duration("RESEND_WINDOW_SECONDS", time.Second, 3600),
		ResendMax:          src.int("RESEND_MAX_ATTEMPTS", 6),
		ResendCooldown:     src.duration("RESEND_COOLDOWN_SECONDS", time.Second, 3600),
		LoginGenericErrors: src.bool("LOGIN_GENERIC_ERRORS"),

		RedisURL:       src.get("REDIS_URL", ""),
		ResendIPLimit:  src.int("RESEND_IP_LIMIT", 20),
		ResendIPWindow: src.duration("RESEND_IP_WINDOW_SECONDS", time.Second, 3600),

		SMTPHost:     src.get("SMTP_HOST", ""),
		SMTPPort:     src.int("SMTP_PORT", 587),
		SMTPUsername: src.get("SMTP_USERNAME", ""),
		SMTPPassword: src.get("SMTP_PASSWORD", ""),
		MailFrom:     src.get("MAIL_FROM", "no-reply@medimate.local"),
		SMTPTimeout:  src.duration("SMTP_TIMEOUT_SECONDS", time.Second, 5),

		OutboxBucket:    src.get("MAIL_OUTBOX_BUCKET", ""),
		OutboxRegion:    src.get("MAIL_OUTBOX_REGION", "us-east-1"),
		OutboxEndpoint:  src.get("MAIL_OUTBOX_ENDPOINT", ""),
		OutboxAccessKey: src.get("MAIL_OUTBOX_ACCESS_KEY", ""),
		OutboxSecretKey: src.get("MAIL_OUTBOX_SECRET_KEY", ""),
	}

	cfg.CORSOrigins = parseCSV(src.get("CORS_ALLOWED_ORIGINS", cfg.FrontendURL))
	if cfg.Production() && slices.Contains(cfg.CORSOrigins, "*") {
		return Config{}, fmt.Errorf("%w: CORS_ALLOWED_ORIGINS must list origins explicitly in production", apperr.ErrConfiguration)
	}
	if cfg.TrustedProxies, err = parsePrefixes(src.get("TRUSTED_PROXIES", "")); err != nil {
		return Config{}, fmt.Errorf("%w: TRUSTED_PROXIES: %v", apperr.ErrConfiguration, err)
	}

	if cfg.DatabaseURL == "" {
		return Config{}, missing("DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, missing("JWT_SECRET")
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = cfg.JWTSecret
	}

	rawKey := src.raw("ENCRYPTION_KEY")
	if rawKey == "" {
		return Config{}, missing("ENCRYPTION_KEY")
	}
	if cfg.EncryptionKey, err = fieldcrypt.ParseKey(rawKey); err != nil {
		return Config{}, fmt.Errorf("%w: ENCRYPTION_KEY: %v", apperr.ErrConfiguration, err)
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("%w: BCRYPT_COST must be between %d and %d",
			apperr.ErrConfiguration, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.Production() && cfg.SMTPHost == "" && cfg.OutboxBucket == "" {
		return Config{}, fmt.Errorf("%w: production requires SMTP_HOST or MAIL_OUTBOX_BUCKET", apperr.ErrConfiguration)
	}

	return cfg, nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// readFile parses a flat YAML mapping keyed by the env var names, e.g.
//
//	PORT: "8080"
//	FRONTEND_URL: https://app.medimate.example
func readFile(path string) (source, error) {
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(source, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return out, nil
}

func missing(key string) error {
	return fmt.Errorf("%w: %s is required", apperr.ErrConfiguration, key)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

// parsePrefixes reads a CSV of CIDRs or bare IPs.
func parsePrefixes(input string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
