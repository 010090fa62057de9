package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Pipeline PipelineConfig
	Approval ApprovalConfig
	Audit    AuditConfig
	Auth     AuthConfig

	// DatabaseURL enables the optional Postgres audit mirror when set.
	DatabaseURL string
	// OpenAIAPIKey enables the LLM-backed domain classifier when set.
	OpenAIAPIKey string
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// PipelineConfig holds the worker loops' tunables.
type PipelineConfig struct {
	// DataDir is the root under which the state stores and the audit log live.
	DataDir             string
	IntakePollInterval  time.Duration
	HealthCheckInterval time.Duration
	// OwnerContact is the fallback notification target when no external
	// planner is configured.
	OwnerContact string
}

// ApprovalConfig holds approval policy and orchestrator settings.
type ApprovalConfig struct {
	PollInterval       time.Duration
	ExpirationWindow   time.Duration
	AutoApproveEnabled bool
	KnownContacts      []string
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	RetentionDays   int
	ArchiveOnExpiry bool
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	JWTSecret     string
	AdminPassword string
	TokenTTL      time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDataDir             = "data"
	defaultIntakePoll          = 30 * time.Second
	defaultApprovalPoll        = 60 * time.Second
	defaultHealthCheckInterval = 5 * time.Minute
	defaultApprovalExpiration  = 24 * time.Hour
	defaultAuditRetentionDays  = 90
	defaultTokenTTL            = 12 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Pipeline: PipelineConfig{
			DataDir:             getEnv("DATA_DIR", defaultDataDir),
			IntakePollInterval:  defaultIntakePoll,
			HealthCheckInterval: defaultHealthCheckInterval,
			OwnerContact:        getEnv("OWNER_CONTACT", ""),
		},
		Approval: ApprovalConfig{
			PollInterval:     defaultApprovalPoll,
			ExpirationWindow: defaultApprovalExpiration,
		},
		Audit: AuditConfig{
			RetentionDays:   defaultAuditRetentionDays,
			ArchiveOnExpiry: true,
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
			TokenTTL:      defaultTokenTTL,
		},
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("INTAKE_POLL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INTAKE_POLL_SECONDS: %w", err)
		}
		cfg.Pipeline.IntakePollInterval = d
	}

	if v := os.Getenv("APPROVAL_POLL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid APPROVAL_POLL_SECONDS: %w", err)
		}
		cfg.Approval.PollInterval = d
	}

	if v := os.Getenv("HEALTH_CHECK_INTERVAL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HEALTH_CHECK_INTERVAL_SECONDS: %w", err)
		}
		cfg.Pipeline.HealthCheckInterval = d
	}

	if v := os.Getenv("APPROVAL_EXPIRATION_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid APPROVAL_EXPIRATION_HOURS: must be a positive integer")
		}
		cfg.Approval.ExpirationWindow = time.Duration(hours) * time.Hour
	}

	if v := os.Getenv("AUTO_APPROVE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUTO_APPROVE_ENABLED: %w", err)
		}
		cfg.Approval.AutoApproveEnabled = enabled
	}

	if v := os.Getenv("KNOWN_CONTACTS"); v != "" {
		cfg.Approval.KnownContacts = splitList(v)
	}

	if v := os.Getenv("AUDIT_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("invalid AUDIT_RETENTION_DAYS: must be a positive integer")
		}
		cfg.Audit.RetentionDays = days
	}

	if v := os.Getenv("AUDIT_ARCHIVE_ON_EXPIRY"); v != "" {
		archive, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUDIT_ARCHIVE_ON_EXPIRY: %w", err)
		}
		cfg.Audit.ArchiveOnExpiry = archive
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
