package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/perimetra/sentinel/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	mu            sync.Mutex
	levelWatchers []func(level string)

	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Audit      AuditConfig      `mapstructure:"audit"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	MFA        MFAConfig        `mapstructure:"mfa"`
	AdminAuth  AdminAuthConfig  `mapstructure:"admin_auth"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// PublicBaseURL is the externally visible origin; the diagnostics and
	// vulnerability checks flag non-HTTPS values in production.
	PublicBaseURL string `mapstructure:"public_base_url"`
	Environment   string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	// Enabled toggles relational persistence (API key snapshots, event archive).
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

// AuditConfig controls the security event store and its background tasks.
type AuditConfig struct {
	MaxStoredEvents    int           `mapstructure:"max_stored_events"`
	Retention          time.Duration `mapstructure:"retention"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	AnomalyWindow      time.Duration `mapstructure:"anomaly_window"`
	RiskAlertThreshold int           `mapstructure:"risk_alert_threshold"`

	// SigningSecret signs exported audit reports; the vulnerability check
	// flags deployments that leave it empty.
	SigningSecret string `mapstructure:"signing_secret"`
}

type RateLimitConfig struct {
	DefaultRequests int           `mapstructure:"default_requests"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
}

type AlertingConfig struct {
	// KafkaBrokers enables the Kafka alert sink when non-empty; otherwise
	// alerts go to the log sink.
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MFAConfig struct {
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	CodeDigits   int           `mapstructure:"code_digits"`
}

// AdminAuthConfig configures the JWT middleware protecting key-management routes.
type AdminAuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type MonitoringConfig struct {
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// IsProduction reports whether the server runs in a production environment.
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// OnLogLevelChange registers fn to run whenever the log level changes
// through a config file reload.
func (c *Config) OnLogLevelChange(fn func(level string)) {
	c.mu.Lock()
	c.levelWatchers = append(c.levelWatchers, fn)
	c.mu.Unlock()
}

// setLogLevel applies a reloaded level and notifies watchers. Reports
// whether the level actually changed.
func (c *Config) setLogLevel(level string) bool {
	c.mu.Lock()
	if level == "" || level == c.Log.Level {
		c.mu.Unlock()
		return false
	}
	c.Log.Level = level
	watchers := append(([]func(string))(nil), c.levelWatchers...)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(level)
	}
	return true
}

// Validate checks for configuration values that would make the service
// misbehave silently.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Audit.MaxStoredEvents <= 0 {
		return fmt.Errorf("audit.max_stored_events must be positive")
	}
	if c.Audit.Retention <= 0 {
		return fmt.Errorf("audit.retention must be positive")
	}
	if c.RateLimit.DefaultRequests <= 0 || c.RateLimit.DefaultWindow <= 0 {
		return fmt.Errorf("rate_limit defaults must be positive")
	}
	if c.AdminAuth.JWTSecret == "" {
		return fmt.Errorf("admin_auth.jwt_secret is required")
	}
	return nil
}

// Default returns a Config populated with the service defaults. The loader
// starts from this and overlays file and environment values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			Environment:  "development",
		},
		Audit: AuditConfig{
			MaxStoredEvents:    constants.DefaultMaxStoredEvents,
			Retention:          constants.DefaultEventRetention,
			SweepInterval:      constants.DefaultSweepInterval,
			AnomalyWindow:      constants.DefaultAnomalyWindow,
			RiskAlertThreshold: constants.DefaultRiskAlertThreshold,
		},
		RateLimit: RateLimitConfig{
			DefaultRequests: constants.DefaultRateLimitRequests,
			DefaultWindow:   constants.DefaultRateLimitWindow,
		},
		MFA: MFAConfig{
			ChallengeTTL: constants.DefaultMFAChallengeTTL,
			CodeDigits:   6,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{
			ServiceName:  "sentinel",
			SamplingRate: 0.1,
		},
	}
}
