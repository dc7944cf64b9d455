package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	Debug        bool
	JWTSecret    string
	CORSOrigins  []string
	RulesPath    string

	Queue    QueueConfig
	Render   RenderConfig
	Security SecurityConfig
	Notify   NotifyConfig
}

// QueueConfig controls job transport and the worker pool.
type QueueConfig struct {
	Backend    string // "memory" or "redis"
	RedisURL   string
	Name       string
	Workers    int
	JobTimeout time.Duration
	ResultTTL  time.Duration
	// SweepSpec is the cron spec for requeueing stale jobs.
	SweepSpec string
	// RetentionSpec is the cron spec for pruning old attack logs.
	RetentionSpec string
	// Retention enables deleting attack logs older than this. Zero, the
	// default, keeps the log append-only.
	Retention time.Duration
}

// RenderConfig controls the headless browser used to fetch page content.
type RenderConfig struct {
	Enabled    bool
	ChromePath string
	Timeout    time.Duration
	DNSServer  string
}

// SecurityConfig holds the shield middleware and rate limiting settings.
type SecurityConfig struct {
	ShieldMode     string // "disabled", "monitor", "block"
	RateLimitRPS   int
	RateLimitBurst int
	TrustedProxies []string
}

// NotifyConfig lists shoutrrr service URLs that receive threat alerts.
type NotifyConfig struct {
	URLs []string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("PHISHGUARD_ENV", "development"),
		HTTPPort:     getEnv("PHISHGUARD_HTTP_PORT", "8080"),
		DatabasePath: getEnv("PHISHGUARD_DB_PATH", filepath.Join("data", "phishguard.db")),
		LogDir:       getEnv("PHISHGUARD_LOG_DIR", filepath.Join("data", "logs")),
		Debug:        getEnvBool("PHISHGUARD_DEBUG", false),
		JWTSecret:    getEnv("PHISHGUARD_JWT_SECRET", "change-me-in-production"),
		CORSOrigins:  getEnvList("PHISHGUARD_CORS_ORIGINS", []string{"*"}),
		RulesPath:    getEnv("PHISHGUARD_RULES_PATH", ""),
		Queue: QueueConfig{
			Backend:       getEnv("PHISHGUARD_QUEUE_BACKEND", "memory"),
			RedisURL:      getEnv("PHISHGUARD_REDIS_URL", "redis://localhost:6379/0"),
			Name:          getEnv("PHISHGUARD_QUEUE_NAME", "analysis"),
			Workers:       getEnvInt("PHISHGUARD_WORKERS", 4),
			JobTimeout:    getEnvDuration("PHISHGUARD_JOB_TIMEOUT", 300*time.Second),
			ResultTTL:     getEnvDuration("PHISHGUARD_RESULT_TTL", time.Hour),
			SweepSpec:     getEnv("PHISHGUARD_SWEEP_SPEC", "@every 5m"),
			RetentionSpec: getEnv("PHISHGUARD_RETENTION_SPEC", "@daily"),
			Retention:     getEnvDuration("PHISHGUARD_ATTACK_RETENTION", 0),
		},
		Render: RenderConfig{
			Enabled:    getEnvBool("PHISHGUARD_RENDER_ENABLED", true),
			ChromePath: getEnv("PHISHGUARD_CHROME_PATH", ""),
			Timeout:    getEnvDuration("PHISHGUARD_RENDER_TIMEOUT", 30*time.Second),
			DNSServer:  getEnv("PHISHGUARD_DNS_SERVER", ""),
		},
		Security: SecurityConfig{
			ShieldMode:     getEnv("PHISHGUARD_SHIELD_MODE", "block"),
			RateLimitRPS:   getEnvInt("PHISHGUARD_RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvInt("PHISHGUARD_RATE_LIMIT_BURST", 20),
			TrustedProxies: getEnvList("PHISHGUARD_TRUSTED_PROXIES", nil),
		},
		Notify: NotifyConfig{
			URLs: getEnvList("PHISHGUARD_NOTIFY_URLS", nil),
		},
	}

	if cfg.Queue.Workers < 1 {
		return Config{}, fmt.Errorf("PHISHGUARD_WORKERS must be at least 1, got %d", cfg.Queue.Workers)
	}

	switch cfg.Security.ShieldMode {
	case "disabled", "monitor", "block":
	default:
		return Config{}, fmt.Errorf("invalid PHISHGUARD_SHIELD_MODE %q", cfg.Security.ShieldMode)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
