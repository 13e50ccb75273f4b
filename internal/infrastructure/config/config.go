package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Atlas.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Layout    LayoutConfig    `yaml:"layout"`
	History   HistoryConfig   `yaml:"history"`
	Hass      HassConfig      `yaml:"hass"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies the home this instance serves.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains sync connection settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LayoutConfig contains layout model policy settings.
type LayoutConfig struct {
	// OverlapTolerance is the maximum interior overlap area between
	// two rooms, in square metres.
	OverlapTolerance float64 `yaml:"overlap_tolerance"`
}

// HistoryConfig contains version store settings.
type HistoryConfig struct {
	// SnapshotInterval is the number of versions between full layout
	// snapshots in the store.
	SnapshotInterval uint64 `yaml:"snapshot_interval"`

	// Retention is how many recent versions pruning keeps
	// reconstructable.
	Retention uint64 `yaml:"retention"`
}

// HassConfig contains the Home Assistant bridge settings.
type HassConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Token   string `yaml:"token"`
	TLS     bool   `yaml:"tls"`
}

// InfluxDBConfig contains device telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains the auth gate settings.
type SecurityConfig struct {
	// AdminUser is the administrative login name.
	AdminUser string `yaml:"admin_user"`

	// AdminHash is the Argon2id PHC hash of the admin password.
	AdminHash string `yaml:"admin_hash"`

	// JWT configures session token signing.
	JWT JWTConfig `yaml:"jwt"`

	// AllowAnonymousRead permits viewer connections without a session.
	AllowAnonymousRead bool `yaml:"allow_anonymous_read"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// SessionTTL is session lifetime in minutes.
	SessionTTL int `yaml:"session_ttl"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern ATLAS_SECTION_KEY, for
// example ATLAS_DATABASE_PATH or ATLAS_HASS_TOKEN.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home-001",
			Name:     "Atlas",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/atlas.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 1 << 20,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Layout: LayoutConfig{
			OverlapTolerance: 1e-4,
		},
		History: HistoryConfig{
			SnapshotInterval: 16,
			Retention:        512,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			AdminUser: "admin",
			JWT: JWTConfig{
				SessionTTL: 720,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLAS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ATLAS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ATLAS_HASS_HOST"); v != "" {
		cfg.Hass.Host = v
		cfg.Hass.Enabled = true
	}
	if v := os.Getenv("ATLAS_HASS_TOKEN"); v != "" {
		cfg.Hass.Token = v
	}
	if v := os.Getenv("ATLAS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("ATLAS_ADMIN_HASH"); v != "" {
		cfg.Security.AdminHash = v
	}
	if v := os.Getenv("ATLAS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength guards against trivially forgeable tokens.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.Layout.OverlapTolerance < 0 {
		errs = append(errs, "layout.overlap_tolerance must not be negative")
	}
	if c.Hass.Enabled && c.Hass.Host == "" {
		errs = append(errs, "hass.host is required when the bridge is enabled")
	}
	if c.Hass.Enabled && c.Hass.Token == "" {
		errs = append(errs, "hass.token is required when the bridge is enabled (set ATLAS_HASS_TOKEN)")
	}

	// An empty admin hash would make every login fail opaquely; an
	// empty JWT secret would make every token forgeable.
	if c.Security.AdminHash == "" {
		errs = append(errs, "security.admin_hash is required (set ATLAS_ADMIN_HASH environment variable)")
	}
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ATLAS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SessionTTLDuration returns the configured session lifetime.
func (c *SecurityConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.JWT.SessionTTL) * time.Minute
}
