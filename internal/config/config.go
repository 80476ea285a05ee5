package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	pkgconfig "github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/pkg/logger"
)

// ServiceName names the config file and the environment prefix
const ServiceName = "reconciler"

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" validate:"required"`
	Source    SourceConfig    `mapstructure:"source"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       logger.Config   `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"service.name":               ServiceName,
		"service.environment":        "dev",
		"reconcile.workers":          4,
		"reconcile.expiring_window":  "168h",
		"reconcile.cohorts.plans":    []string{"BASIC", "PRO", "VIP", "ELITE"},
		"source.kind":                SourceKindFile,
		"database.port":              5432,
		"database.max_open_conns":    10,
		"database.max_idle_conns":    5,
		"database.conn_max_lifetime": "1h",
		"database.slow_threshold":    "200ms",
		"server.http.port":           8080,
		"server.grpc.port":           9090,
		"log.level":                  "info",
		"log.format":                 "json",
		"redis.snapshot_prefix":      "reconciler:snapshot:",
		"redis.snapshot_ttl":         "720h",
		"redis.channel":              "reconciler.snapshots",
		"storage.prefix":             "snapshots/",
	}
}

// LoadConfig reads the reconciler configuration and validates it
func LoadConfig() (*Config, error) {
	raw, err := pkgconfig.Load(ServiceName, pkgconfig.WithDefaults(defaults()))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := raw.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Reconcile.RatesFile == "" && len(c.Reconcile.Rates) == 0 {
		return fmt.Errorf("invalid config: reconcile.rates_file or reconcile.rates is required")
	}
	if len(c.Reconcile.Rates) > 0 && c.Reconcile.BaseCurrency == "" {
		return fmt.Errorf("invalid config: reconcile.base_currency is required with inline rates")
	}
	if c.Source.Kind == SourceKindPostgres && c.Database.Host == "" {
		return fmt.Errorf("invalid config: database.host is required for postgres sources")
	}

	return nil
}
