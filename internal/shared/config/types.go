// Package config defines the typed configuration structures shared across
// the application. Values are populated by the infrastructure config loader.
package config

import "fmt"

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GetAddr returns the listen address in host:port form.
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console, json
	OutputPath string `mapstructure:"output_path"`
}

type AuthConfig struct {
	JWTSecret        string   `mapstructure:"jwt_secret"`
	AccessExpMinutes int      `mapstructure:"access_exp_minutes"`
	BcryptCost       int      `mapstructure:"bcrypt_cost"`
	SudoUsernames    []string `mapstructure:"sudo_usernames"` // env-declared super admins
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type SubscriptionConfig struct {
	Path                  string `mapstructure:"path"` // URL segment, e.g. "sub"
	ProfileTitle          string `mapstructure:"profile_title"`
	UpdateIntervalHours   int    `mapstructure:"update_interval_hours"`
	SupportURL            string `mapstructure:"support_url"`
	TokenValidityUnlimited bool  `mapstructure:"token_validity_unlimited"`
}

type PKIConfig struct {
	ExportDir string `mapstructure:"export_dir"`
}

// JobsConfig carries per-job enable flags and cadence overrides (seconds).
type JobsConfig struct {
	DisableHealthCheck     bool `mapstructure:"disable_health_check"`
	DisableUsageCollection bool `mapstructure:"disable_usage_collection"`
	DisableReview          bool `mapstructure:"disable_review"`
	DisablePeriodicReset   bool `mapstructure:"disable_periodic_reset"`
	DisableAutoDelete      bool `mapstructure:"disable_auto_delete"`
	DisableReminderSweep   bool `mapstructure:"disable_reminder_sweep"`
	DisableBandwidthSample bool `mapstructure:"disable_bandwidth_sample"`

	HealthCheckSeconds     int `mapstructure:"health_check_seconds"`
	UsageCollectionSeconds int `mapstructure:"usage_collection_seconds"`
	AggregationSeconds     int `mapstructure:"aggregation_seconds"`
	ReviewSeconds          int `mapstructure:"review_seconds"`

	// AutoDeleteDefaultDays applies to users without a per-user window;
	// zero or negative disables the fleet-wide default.
	AutoDeleteDefaultDays    int  `mapstructure:"auto_delete_default_days"`
	AutoDeleteIncludeLimited bool `mapstructure:"auto_delete_include_limited"`
}
