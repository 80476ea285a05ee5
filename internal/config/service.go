package config

import "time"

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

// ReconcileConfig drives the reconciliation engine
type ReconcileConfig struct {
	// Mode is strict or lenient and has no default
	Mode           string            `mapstructure:"mode" validate:"required,oneof=strict lenient"`
	BaseCurrency   string            `mapstructure:"base_currency" validate:"omitempty,len=3"`
	RatesFile      string            `mapstructure:"rates_file"`
	Rates          map[string]string `mapstructure:"rates"`
	Workers        int               `mapstructure:"workers" validate:"min=1,max=256"`
	ExpiringWindow time.Duration     `mapstructure:"expiring_window" validate:"min=0"`
	Cohorts        CohortConfig      `mapstructure:"cohorts"`
}

type CohortConfig struct {
	Plans []string `mapstructure:"plans"`
}

// Source kinds
const (
	SourceKindFile     = "file"
	SourceKindPostgres = "postgres"
)

// SourceConfig selects where the three record sources are read from
type SourceConfig struct {
	Kind              string `mapstructure:"kind" validate:"required,oneof=file postgres"`
	Payments          string `mapstructure:"payments"`
	Subscriptions     string `mapstructure:"subscriptions"`
	LegacyMemberships string `mapstructure:"legacy_memberships"`
}

type RedisConfig struct {
	// Addr enables the redis snapshot store and publisher when set
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	SnapshotPrefix string        `mapstructure:"snapshot_prefix"`
	SnapshotTTL    time.Duration `mapstructure:"snapshot_ttl"`
	Channel        string        `mapstructure:"channel"`
}

// StorageConfig configures the S3-compatible snapshot archive. An empty
// bucket disables archiving.
type StorageConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}
