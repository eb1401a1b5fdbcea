package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/perimetra/sentinel/pkg/logger"
)

// Load reads configuration from ./config.yaml (or /etc/sentinel/config.yaml),
// overlays SENTINEL_* environment variables, and validates the result.
func Load(log logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sentinel/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Hot-reload the log level on config file edits; everything else needs
	// a restart. Watchers registered via OnLogLevelChange receive the new
	// level so the live logger can follow.
	v.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			log.Warn(context.Background(), "config reload skipped: unmarshal failed",
				logger.String("file", e.Name), logger.Error(err))
			return
		}
		if cfg.setLogLevel(next.Log.Level) {
			log.Info(context.Background(), "log level changed",
				logger.String("to", next.Log.Level))
		}
	})
	v.WatchConfig()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("audit.max_stored_events", d.Audit.MaxStoredEvents)
	v.SetDefault("audit.retention", d.Audit.Retention)
	v.SetDefault("audit.sweep_interval", d.Audit.SweepInterval)
	v.SetDefault("audit.anomaly_window", d.Audit.AnomalyWindow)
	v.SetDefault("audit.risk_alert_threshold", d.Audit.RiskAlertThreshold)
	v.SetDefault("rate_limit.default_requests", d.RateLimit.DefaultRequests)
	v.SetDefault("rate_limit.default_window", d.RateLimit.DefaultWindow)
	v.SetDefault("mfa.challenge_ttl", d.MFA.ChallengeTTL)
	v.SetDefault("mfa.code_digits", d.MFA.CodeDigits)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
}
