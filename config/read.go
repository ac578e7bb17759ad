package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/franchise_backend/pkg/constants"
)

// ReadConfig loads config.yaml from dir. See ReadConfigFile.
func ReadConfig(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(dir)
	return load(v)
}

// ReadConfigFile loads the config at path. Every key can be overridden from
// the environment, e.g. FRANCHISE_DATABASE_HOST for database.host. A missing
// file is tolerated only when the database host comes from the environment,
// which is how containers run it.
func ReadConfigFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys need a default to be visible to env overrides when no file sets them.
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("authorization.policy_store", "memory")
	v.SetDefault("commission.currency_scale", 0)
	v.SetDefault("commission.distribute_max_attempts", 3)
	v.SetDefault("scheduler.tick_seconds", 60)
	v.SetDefault("scheduler.lock_ttl_seconds", 300)
	v.SetDefault("scheduler.batch_timeout_seconds", 600)
	v.SetDefault("scheduler.report_prefix", "settlement-runs")
	v.SetDefault("outbox.poll_interval_ms", 1000)
	v.SetDefault("outbox.batch_size", 25)
	v.SetDefault("outbox.lease_seconds", 60)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("payrail.timeout_seconds", 30)
	v.SetDefault("nats.subject_prefix", constants.DefaultSubjectPrefix)
	v.SetDefault("observability.service_name", constants.AppName)
}
