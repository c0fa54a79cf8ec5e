package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NATS         NATSConfig
	Auth         AuthConfig
	Email        EmailConfig
	Uploads      UploadConfig
	Notify       NotifyConfig
	RateLimit    RateLimitConfig
	Reservations ReservationConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	StaticDir       string
	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MaxLifetime    time.Duration
	MigrateOnStart bool
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	CacheTTL time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Queue   string
}

type AuthConfig struct {
	ClientID       string
	TenantID       string // pins the issuer when set
	JWKSURL        string
	AllowedTenants []string
	AdminEmails    []string
}

type EmailConfig struct {
	Provider        string // mailersend, smtp or dev
	MailerSendKey   string
	FromEmail       string
	FromName        string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	SMTPUseTLS      bool
	DisplayTimezone string
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type NotifyConfig struct {
	Mode string // direct or events
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ReservationConfig struct {
	StrictBlocks bool
}

const (
	NotifyDirect = "direct"
	NotifyEvents = "events"
)

// Load reads configuration from the environment only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads an optional .env file before reading the environment.
// Variables already present in the environment win.
func LoadWithFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			StaticDir:       getEnv("STATIC_DIR", "public"),
			TrustedProxies:  getList("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			URL:            databaseURL(),
			MaxConns:       getInt("DB_MAX_CONNS", 10),
			MinConns:       getInt("DB_MIN_CONNS", 1),
			MaxLifetime:    getDuration("DB_MAX_LIFETIME", time.Hour),
			MigrateOnStart: getBool("MIGRATE_ON_START", true),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			URL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
			CacheTTL: getDuration("CACHE_TTL", 30*time.Second),
		},
		NATS: NATSConfig{
			Enabled: getBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Queue:   getEnv("NATS_QUEUE", "notify"),
		},
		Auth: AuthConfig{
			ClientID:       getEnv("ENTRA_CLIENT_ID", ""),
			TenantID:       getEnv("ENTRA_TENANT_ID", ""),
			JWKSURL:        getEnv("ENTRA_JWKS_URL", "https://login.microsoftonline.com/common/discovery/v2.0/keys"),
			AllowedTenants: getList("ENTRA_ALLOWED_TENANTS", nil),
			AdminEmails:    lower(getList("ADMIN_EMAILS", nil)),
		},
		Email: EmailConfig{
			Provider:        strings.ToLower(getEnv("EMAIL_PROVIDER", "dev")),
			MailerSendKey:   getEnv("MAILERSEND_API_KEY", ""),
			FromEmail:       getEnv("FROM_EMAIL", "noreply@bookavan.com"),
			FromName:        getEnv("FROM_NAME", "Facilities Team"),
			SMTPHost:        getEnv("SMTP_HOST", "localhost"),
			SMTPPort:        getInt("SMTP_PORT", 1025),
			SMTPUser:        getEnv("SMTP_USER", ""),
			SMTPPass:        getEnv("SMTP_PASS", ""),
			SMTPUseTLS:      getBool("SMTP_USE_TLS", false),
			DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Europe/Brussels"),
		},
		Uploads: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
		Notify: NotifyConfig{
			Mode: strings.ToLower(getEnv("NOTIFY_MODE", NotifyDirect)),
		},
		RateLimit: RateLimitConfig{
			Requests: getInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Reservations: ReservationConfig{
			StrictBlocks: getBool("STRICT_BLOCKS", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL (or PGHOST/PGDATABASE) is required"))
	}
	if c.Auth.ClientID == "" {
		errs = append(errs, errors.New("ENTRA_CLIENT_ID is required"))
	}
	switch c.Email.Provider {
	case "mailersend", "smtp", "dev":
	default:
		errs = append(errs, fmt.Errorf("EMAIL_PROVIDER %q is not one of mailersend, smtp, dev", c.Email.Provider))
	}
	switch c.Notify.Mode {
	case NotifyDirect:
	case NotifyEvents:
		if !c.NATS.Enabled {
			errs = append(errs, errors.New("NOTIFY_MODE=events requires NATS_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_MODE %q is not one of direct, events", c.Notify.Mode))
	}
	if _, err := time.LoadLocation(c.Email.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DISPLAY_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and falls back to the libpq PG* variables.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("PGHOST")
	name := os.Getenv("PGDATABASE")
	if host == "" || name == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + getEnv("PGPORT", "5432"),
		Path:   "/" + name,
	}
	if user := os.Getenv("PGUSER"); user != "" {
		u.User = url.UserPassword(user, os.Getenv("PGPASSWORD"))
	}
	q := u.Query()
	q.Set("sslmode", getEnv("PGSSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getList splits a comma separated variable, dropping blanks.
func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lower(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}
