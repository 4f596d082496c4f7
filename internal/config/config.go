package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RateConfig holds the fixed-window ceilings for the per-route limiters.
// All classes share one window; each has its own ceiling because their
// abuse profiles differ.
type RateConfig struct {
	Window                time.Duration
	PublicMax             int
	AuthMax               int
	PasswordMax           int
	MeMax                 int
	ReportMax             int
	ResourceSubmissionMax int
	FollowMax             int
}

// GuardConfig holds brute-force escalation thresholds.
type GuardConfig struct {
	Window        time.Duration // attempt-counter window
	MaxFails      int           // worst count that triggers an IP block
	BlockFor      time.Duration // duration of a brute-force block
	AlertCooldown time.Duration // per-key alert dedup window
}

// CaptchaConfig holds score-gate settings for the external trust scorer.
type CaptchaConfig struct {
	Secret       string
	Threshold    float64
	StrikeLimit  int           // low-score strikes before the IP is blocked
	StrikeBlock  time.Duration // duration of a low-score block
	VerifyURL    string
	VerifyWithin time.Duration
}

// AlertConfig holds security-alert delivery settings.
type AlertConfig struct {
	Enabled      bool // master switch, independent of environment
	Email        string
	ShoutrrrURLs string // comma-separated shoutrrr service URLs
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	JWTSecret    string
	TrustProxy   bool
	Diagnostics  bool

	Rate    RateConfig
	Guard   GuardConfig
	Captcha CaptchaConfig
	Alerts  AlertConfig
}

// IsProduction reports whether the server runs in a production-like mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// AlertsActive reports whether security alerts may actually be dispatched.
// Alerts are dev-safe: outside production they are always suppressed.
func (c Config) AlertsActive() bool {
	return c.Alerts.Enabled && c.IsProduction()
}

// Load reads env vars and falls back to defaults so the server can boot with
// zero configuration. A .env file is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:  getEnv("VIGIA_ENV", "development"),
		HTTPPort:     getEnv("VIGIA_HTTP_PORT", "8080"),
		DatabasePath: getEnv("VIGIA_DB_PATH", filepath.Join("data", "vigia.db")),
		JWTSecret:    getEnv("VIGIA_JWT_SECRET", ""),
		TrustProxy:   getEnvBool("VIGIA_TRUST_PROXY", false),
		Rate: RateConfig{
			Window:                getEnvDuration("VIGIA_RATE_WINDOW_MS", 15*time.Minute),
			PublicMax:             getEnvInt("VIGIA_RATE_PUBLIC_MAX", 300),
			AuthMax:               getEnvInt("VIGIA_RATE_AUTH_MAX", 20),
			PasswordMax:           getEnvInt("VIGIA_RATE_PASSWORD_MAX", 10),
			MeMax:                 getEnvInt("VIGIA_RATE_ME_MAX", 300),
			ReportMax:             getEnvInt("VIGIA_RATE_REPORT_MAX", 10),
			ResourceSubmissionMax: getEnvInt("VIGIA_RATE_RESOURCE_SUBMISSION_MAX", 12),
			FollowMax:             getEnvInt("VIGIA_RATE_FOLLOW_MAX", 60),
		},
		Guard: GuardConfig{
			Window:        getEnvDuration("VIGIA_BF_WINDOW_MS", 10*time.Minute),
			MaxFails:      getEnvInt("VIGIA_BF_MAX_FAILS", 8),
			BlockFor:      getEnvDuration("VIGIA_BF_BLOCK_MS", time.Hour),
			AlertCooldown: getEnvDuration("VIGIA_ALERT_COOLDOWN_MS", 10*time.Minute),
		},
		Captcha: CaptchaConfig{
			Secret:       getEnv("VIGIA_RECAPTCHA_SECRET", ""),
			Threshold:    getEnvFloat("VIGIA_RECAPTCHA_THRESHOLD", 0.5),
			StrikeLimit:  getEnvInt("VIGIA_LOW_SCORE_STRIKES", 3),
			StrikeBlock:  getEnvDuration("VIGIA_LOW_SCORE_BLOCK_MS", 30*time.Minute),
			VerifyURL:    getEnv("VIGIA_RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			VerifyWithin: getEnvDuration("VIGIA_RECAPTCHA_TIMEOUT_MS", 10*time.Second),
		},
		Alerts: AlertConfig{
			Enabled:      getEnvBool("VIGIA_SECURITY_ALERTS_ENABLED", true),
			Email:        getEnv("VIGIA_SECURITY_ALERT_EMAIL", ""),
			ShoutrrrURLs: getEnv("VIGIA_ALERT_URLS", ""),
			SMTPHost:     getEnv("VIGIA_SMTP_HOST", ""),
			SMTPPort:     getEnvInt("VIGIA_SMTP_PORT", 587),
			SMTPUsername: getEnv("VIGIA_SMTP_USERNAME", ""),
			SMTPPassword: getEnv("VIGIA_SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("VIGIA_SMTP_FROM", ""),
		},
	}
	cfg.Diagnostics = getEnvBool("VIGIA_DIAGNOSTICS", !cfg.IsProduction())

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
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

// getEnvDuration reads a millisecond count, matching the *_MS env names.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
