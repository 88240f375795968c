package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultBatchLimit  = 500
	DefaultClaimTTL    = 30 * time.Second
	DefaultPort        = "8080"
	defaultSSLMode     = "disable"
	defaultCORSOrigins = "*"
)

// Config is the full process configuration, resolved once at startup
type Config struct {
	Port    string
	GinMode string

	Database DatabaseConfig
	Reminder ReminderConfig
	SendGrid SendGridConfig

	SiteURL     string
	CronSecret  string
	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// DatabaseConfig describes how to reach postgres
type DatabaseConfig struct {
	URL         string
	Host        string
	User        string
	Password    string
	Name        string
	Port        string
	SSLMode     string
	AutoMigrate bool
}

// ReminderConfig tunes the sweep
type ReminderConfig struct {
	Window        time.Duration
	BatchLimit    int
	ClaimTTL      time.Duration
	SweepInterval time.Duration

	// RecipientsColumn reports whether reminders.recipient_user_ids exists
	// in the target schema.
	RecipientsColumn bool
}

// SendGridConfig holds the notifier credentials
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Enabled reports whether enough is configured to send mail
func (c SendGridConfig) Enabled() bool {
	return c.APIKey != "" && c.FromEmail != ""
}

// DSN builds the postgres connection string. In release mode DATABASE_URL is used as is.
func (c DatabaseConfig) DSN(release bool) (string, error) {
	if release || (c.URL != "" && c.Host == "") {
		if c.URL == "" {
			return "", fmt.Errorf("DATABASE_URL is not set")
		}
		return c.URL, nil
	}
	var missing []string
	for _, kv := range [][2]string{
		{"DB_HOST", c.Host}, {"DB_USER", c.User}, {"DB_NAME", c.Name}, {"DB_PORT", c.Port},
	} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("required database variables not set: %s", strings.Join(missing, ", "))
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode), nil
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:       get("PORT", DefaultPort),
		GinMode:    get("GIN_MODE", "debug"),
		SiteURL:    strings.TrimRight(get("NEXT_PUBLIC_SITE_URL", get("SITE_URL", "")), "/"),
		CronSecret: get("CRON_SECRET", ""),
		LogLevel:   get("LOG_LEVEL", "info"),
		LogFormat:  get("LOG_FORMAT", "json"),
		Database: DatabaseConfig{
			URL:      get("DATABASE_URL", ""),
			Host:     get("DB_HOST", ""),
			User:     get("DB_USER", ""),
			Password: get("DB_PASSWORD", ""),
			Name:     get("DB_NAME", ""),
			Port:     get("DB_PORT", ""),
			SSLMode:  get("DB_SSL_MODE", defaultSSLMode),
		},
		SendGrid: SendGridConfig{
			APIKey:    get("SENDGRID_API_KEY", ""),
			FromEmail: get("SENDGRID_NOTIFICATIONS_FROM_EMAIL", ""),
			FromName:  get("SENDGRID_FROM_NAME", "Tracker"),
		},
		Reminder: ReminderConfig{
			Window: parseWindow(get("REMINDER_WINDOW_MS", "")),
		},
	}

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS", defaultCORSOrigins), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	var err error
	if cfg.Database.AutoMigrate, err = parseBool(get("DB_AUTO_MIGRATE", "true"), "DB_AUTO_MIGRATE"); err != nil {
		return nil, err
	}
	if cfg.Reminder.RecipientsColumn, err = parseBool(get("REMINDER_RECIPIENTS_COLUMN", "true"), "REMINDER_RECIPIENTS_COLUMN"); err != nil {
		return nil, err
	}
	if cfg.Reminder.BatchLimit, err = strconv.Atoi(get("REMINDER_BATCH_LIMIT", strconv.Itoa(DefaultBatchLimit))); err != nil || cfg.Reminder.BatchLimit <= 0 {
		return nil, fmt.Errorf("REMINDER_BATCH_LIMIT must be a positive integer")
	}
	ttl, err := strconv.Atoi(get("REMINDER_CLAIM_TTL_MS", strconv.Itoa(int(DefaultClaimTTL.Milliseconds()))))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("REMINDER_CLAIM_TTL_MS must be a positive integer")
	}
	cfg.Reminder.ClaimTTL = ClampClaimTTL(time.Duration(ttl)*time.Millisecond, cfg.Reminder.Window)

	if raw := get("REMINDER_SWEEP_INTERVAL", ""); raw != "" {
		if cfg.Reminder.SweepInterval, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid REMINDER_SWEEP_INTERVAL: %w", err)
		}
	}

	return cfg, nil
}

// Release reports whether gin runs in release mode
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// ClampClaimTTL caps a claim lease at half the due window. A claim left
// behind by a crashed sweep then expires while the reminder is still inside
// the window of a later sweep.
func ClampClaimTTL(ttl, window time.Duration) time.Duration {
	if limit := window / 2; ttl > limit {
		return limit
	}
	return ttl
}

// parseWindow keeps the lenient behaviour of the cron endpoint: anything
// unusable falls back to the default window.
func parseWindow(raw string) time.Duration {
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return DefaultWindow
	}
	return time.Duration(ms) * time.Millisecond
}

func parseBool(raw, key string) (bool, error) {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
