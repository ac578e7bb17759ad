package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Server         ServerConfig         `mapstructure:"server"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Authorization  AuthorizationConfig  `mapstructure:"authorization"`
	Commission     CommissionConfig     `mapstructure:"commission"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	Outbox         OutboxConfig         `mapstructure:"outbox"`
	PayRail        PayRailConfig        `mapstructure:"payrail"`
	Email          EmailConfig          `mapstructure:"email"`
	SMS            SMSConfig            `mapstructure:"sms"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	S3             S3Config             `mapstructure:"s3"`
	Nats           NatsConfig           `mapstructure:"nats"`
}

type NatsConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
	Logging    DatabaseLoggingConfig   `mapstructure:"logging"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
	SafeMode    bool `mapstructure:"safe_mode"`
}

type DatabaseLoggingConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	SlowQueryThresholdMs int  `mapstructure:"slow_query_threshold_ms"`
}

type RedisConfig struct {
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	KeyPrefix           string `mapstructure:"key_prefix"`
}

type RateLimitConfig struct {
	Max           int `mapstructure:"max"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Environment    string          `mapstructure:"environment"`
	Domain         string          `mapstructure:"domain"`
	Databases      []string        `mapstructure:"databases"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAgeSeconds    int      `mapstructure:"max_age_seconds"`
}

type AuthenticationConfig struct {
	Paseto PasetoConfig `mapstructure:"paseto"`
	// CheckSessions rejects tokens whose session key is missing from Redis.
	CheckSessions bool `mapstructure:"check_sessions"`
	// EncryptionKey is a 32-byte hex string used for AES-256-GCM encryption
	// of member payout accounts.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// AuthorizationConfig selects where route permissions live. The memory store
// seeds the built-in matrix on every start; postgres persists it through the
// casbin adapter so HQ can edit grants without a deploy.
type AuthorizationConfig struct {
	PolicyStore       string `mapstructure:"policy_store"` // memory | postgres
	PolicySyncEnabled bool   `mapstructure:"policy_sync_enabled"`
	EnableAudit       bool   `mapstructure:"enable_audit"`
}

type PasetoConfig struct {
	Mode             string `mapstructure:"mode"`
	LocalKeyHex      string `mapstructure:"local_key_hex"`
	SecretKeyHex     string `mapstructure:"secret_key_hex"`
	PublicKeyHex     string `mapstructure:"public_key_hex"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
}

type CommissionConfig struct {
	// CurrencyScale is the number of decimal places of the minimum currency unit
	// (0 for KRW, 2 for USD).
	CurrencyScale         int32 `mapstructure:"currency_scale"`
	DistributeMaxAttempts int   `mapstructure:"distribute_max_attempts"`
}

type SchedulerConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	TickSeconds         int    `mapstructure:"tick_seconds"`
	LockTTLSeconds      int    `mapstructure:"lock_ttl_seconds"`
	BatchTimeoutSeconds int    `mapstructure:"batch_timeout_seconds"`
	ReportPrefix        string `mapstructure:"report_prefix"`
}

type OutboxConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PollIntervalMs int  `mapstructure:"poll_interval_ms"`
	BatchSize      int  `mapstructure:"batch_size"`
	LeaseSeconds   int  `mapstructure:"lease_seconds"`
	MaxAttempts    int  `mapstructure:"max_attempts"`
}

type PayRailConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Sandbox        bool   `mapstructure:"sandbox"`
}

type EmailConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	UseTLS         bool   `mapstructure:"use_tls"`
	SkipVerify     bool   `mapstructure:"skip_verify"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type SMSConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	SMSIR   SMSIRConfig `mapstructure:"smsir"`
}

type SMSIRConfig struct {
	APIKey     string `mapstructure:"api_key"`
	SecretKey  string `mapstructure:"secret_key"`
	TemplateID string `mapstructure:"template_id"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/app.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	TenantID string `mapstructure:"tenant_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
}

func (c *Config) Validate() error {
	var errs []error

	if c.Commission.CurrencyScale < 0 || c.Commission.CurrencyScale > 4 {
		errs = append(errs, fmt.Errorf("commission.currency_scale must be between 0 and 4, got %d", c.Commission.CurrencyScale))
	}
	if c.Commission.DistributeMaxAttempts < 0 {
		errs = append(errs, errors.New("commission.distribute_max_attempts must not be negative"))
	}
	if c.Scheduler.Enabled && c.Scheduler.TickSeconds <= 0 {
		errs = append(errs, errors.New("scheduler.tick_seconds must be positive when the scheduler is enabled"))
	}
	if c.Outbox.Enabled && c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("outbox.batch_size must be positive when the outbox relay is enabled"))
	}
	if k := c.Authentication.EncryptionKey; k != "" && len(k) != 64 {
		errs = append(errs, errors.New("authentication.encryption_key must be 64 hex characters"))
	}
	switch strings.ToLower(c.Authentication.Paseto.Mode) {
	case "", "local", "public":
	default:
		errs = append(errs, fmt.Errorf("authentication.paseto.mode %q is not one of local|public", c.Authentication.Paseto.Mode))
	}

	switch c.Authorization.PolicyStore {
	case "", "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("authorization.policy_store %q is not one of memory|postgres", c.Authorization.PolicyStore))
	}
	if c.Authorization.PolicySyncEnabled && c.Authorization.PolicyStore != "postgres" {
		errs = append(errs, errors.New("authorization.policy_sync_enabled requires policy_store postgres"))
	}

	return errors.Join(errs...)
}
