// Package config loads Docket's runtime configuration.
//
// Precedence, lowest first: built-in defaults, the config file (YAML or JSON
// by extension), DOCKET_* environment variables, then command-line flags
// (applied by the caller).
package config

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/docket/internal/logging"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "DOCKET_"

// DefaultFiles are probed in order when no explicit config path is given.
var DefaultFiles = []string{"docket.yaml", "docket.yml", "docket.json"}

// Persistence backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendLoam   = "loam"
	BackendSQLite = "sqlite"
)

type Config struct {
	Log         LogConfig         `yaml:"log" json:"log" envPrefix:"LOG_"`
	HTTP        HTTPConfig        `yaml:"http" json:"http" envPrefix:"HTTP_"`
	Persistence PersistenceConfig `yaml:"persistence" json:"persistence" envPrefix:"PERSISTENCE_"`
	Service     ServiceConfig     `yaml:"service" json:"service" envPrefix:"SERVICE_"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics" envPrefix:"METRICS_"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry" envPrefix:"TELEMETRY_"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
}

type HTTPConfig struct {
	Addr         string   `yaml:"addr" json:"addr" env:"ADDR"`
	AuthSecret   string   `yaml:"auth_secret" json:"auth_secret" env:"AUTH_SECRET"`
	CORSOrigins  []string `yaml:"cors_origins" json:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	MaxBodyBytes int64    `yaml:"max_body_bytes" json:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

type PersistenceConfig struct {
	Backend string `yaml:"backend" json:"backend" env:"BACKEND"`
	// Path is the directory (file), vault (loam) or database file (sqlite).
	Path          string      `yaml:"path" json:"path" env:"PATH"`
	Redis         RedisConfig `yaml:"redis" json:"redis" envPrefix:"REDIS_"`
	EncryptionKey string      `yaml:"encryption_key" json:"encryption_key" env:"ENCRYPTION_KEY"`
	FallbackKeys  []string    `yaml:"fallback_keys" json:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
	MaskPatterns  []string    `yaml:"mask_patterns" json:"mask_patterns" env:"MASK_PATTERNS" envSeparator:","`
	LockTTL       string      `yaml:"lock_ttl" json:"lock_ttl" env:"LOCK_TTL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" env:"ADDR"`
	Password string `yaml:"password" json:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"DB"`
	Prefix   string `yaml:"prefix" json:"prefix" env:"PREFIX"`
	TTL      string `yaml:"ttl" json:"ttl" env:"TTL"`
	// Lock enables the distributed session lock.
	Lock bool `yaml:"lock" json:"lock" env:"LOCK"`
}

type ServiceConfig struct {
	MaxInputSize int    `yaml:"max_input_size" json:"max_input_size" env:"MAX_INPUT_SIZE"`
	Session      string `yaml:"session" json:"session" env:"SESSION"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" json:"path" env:"PATH"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: string(logging.FormatText)},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			CORSOrigins:  []string{"*"},
			MaxBodyBytes: 1 << 20,
		},
		Persistence: PersistenceConfig{
			Backend: BackendNone,
			Path:    ".docket",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "docket:session:",
			},
			LockTTL: "30s",
		},
		Service:   ServiceConfig{MaxInputSize: 4096},
		Metrics:   MetricsConfig{Path: "/metrics"},
		Telemetry: TelemetryConfig{ServiceName: "docket"},
	}
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path probes DefaultFiles in the working directory;
// a missing default file is not an error, a missing explicit one is.
// overrides run after the environment and before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findDefault()
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for _, fn := range overrides {
		fn(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findDefault() string {
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return nil
	}
	// Default to YAML
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks enumerations, durations and keys.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}

	switch c.Persistence.Backend {
	case "", BackendNone, BackendMemory, BackendFile, BackendRedis, BackendLoam, BackendSQLite:
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}

	if _, err := c.Persistence.Redis.TTLDuration(); err != nil {
		return err
	}
	if _, err := c.Persistence.LockTTLDuration(); err != nil {
		return err
	}
	if _, _, err := c.Persistence.Keys(); err != nil {
		return err
	}
	for _, p := range c.Persistence.MaskPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid persistence.mask_patterns entry %q: %w", p, err)
		}
	}
	if c.Service.MaxInputSize < 0 {
		return fmt.Errorf("service.max_input_size must not be negative")
	}
	return nil
}

// TTLDuration parses TTL. Empty means no expiry.
func (r RedisConfig) TTLDuration() (time.Duration, error) {
	return parseDuration("persistence.redis.ttl", r.TTL)
}

// LockTTLDuration parses LockTTL. Empty means the session manager default.
func (p PersistenceConfig) LockTTLDuration() (time.Duration, error) {
	return parseDuration("persistence.lock_ttl", p.LockTTL)
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return d, nil
}

// Keys decodes the encryption keys. Both are nil when encryption is off.
// Keys are 32 bytes, given as 64 hex characters or standard base64.
func (p PersistenceConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if p.EncryptionKey == "" {
		if len(p.FallbackKeys) > 0 {
			return nil, nil, fmt.Errorf("persistence.fallback_keys requires persistence.encryption_key")
		}
		return nil, nil, nil
	}
	active, err = decodeKey(p.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid persistence.encryption_key: %w", err)
	}
	for i, k := range p.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid persistence.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, errors.New("expected 32 bytes as hex or base64")
}
