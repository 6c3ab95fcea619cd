// Package config loads daemon configuration from a YAML file and FILETRANSFER_*
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/velmie/filetransfer/filestore"
	"github.com/velmie/filetransfer/internal/logx"
	"github.com/velmie/filetransfer/sqlstore"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FILETRANSFER_"

// Lock types.
const (
	LockNone     = "none"
	LockDatabase = "database"
	LockRedis    = "redis"
)

const (
	defaultSchedule     = "@every 1m"
	defaultLockName     = "filetransfer:cycle"
	defaultLockTTL      = 10 * time.Minute
	defaultRetention    = 30 * 24 * time.Hour
	defaultCleanupEvery = time.Hour
	defaultCleanupLimit = 1000
	defaultShutdown     = 10 * time.Second
)

// Config is the resolved daemon configuration.
type Config struct {
	// UploadLimit is the per-cycle batch size. 0 means unbounded.
	UploadLimit int `yaml:"-"`
	// RawUploadLimit is the value as written in the file or environment.
	RawUploadLimit string `yaml:"upload_limit"`

	Schedule        string                    `yaml:"schedule"`
	Database        Database                  `yaml:"database"`
	Backends        []filestore.BackendConfig `yaml:"backends"`
	DeleteSource    bool                      `yaml:"delete_source"`
	TransferTimeout time.Duration             `yaml:"transfer_timeout"`
	TransferRate    float64                   `yaml:"transfer_rate"`
	TransferBurst   int                       `yaml:"transfer_burst"`
	Lock            Lock                      `yaml:"lock"`
	Admin           Admin                     `yaml:"admin"`
	Log             logx.Config               `yaml:"log"`
	Cleanup         Cleanup                   `yaml:"cleanup"`
	ShutdownTimeout time.Duration             `yaml:"shutdown_timeout"`

	// Warnings lists problems that were resolved to defaults instead of failing.
	Warnings []string `yaml:"-"`
}

// Database selects the SQL backend of the request queue and the error ledger.
type Database struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	ErrorTable    string `yaml:"error_table"`
	RequestTable  string `yaml:"request_table"`
	MaxMessageLen int    `yaml:"max_message_len"`
}

// Dialect parses Driver.
func (d Database) Dialect() (sqlstore.Dialect, error) {
	return sqlstore.ParseDialect(d.Driver)
}

// Lock configures the cross-process cycle lease.
type Lock struct {
	Type     string        `yaml:"type"`
	Name     string        `yaml:"name"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Admin configures the reporting HTTP server. An empty Addr disables it.
type Admin struct {
	Addr string `yaml:"addr"`
}

// Cleanup configures error record retention.
type Cleanup struct {
	Enabled   bool          `yaml:"enabled"`
	Retention time.Duration `yaml:"retention"`
	Interval  time.Duration `yaml:"interval"`
	Limit     int           `yaml:"limit"`
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path (optional) and applies environment overrides from the process.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	c.UploadLimit = c.resolveUploadLimit()
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = defaultSchedule
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.TransferBurst <= 0 {
		c.TransferBurst = 1
	}
	if c.Lock.Type == "" {
		c.Lock.Type = LockNone
	}
	c.Lock.Type = strings.ToLower(strings.TrimSpace(c.Lock.Type))
	if c.Lock.Name == "" {
		c.Lock.Name = defaultLockName
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = defaultLockTTL
	}
	if c.Cleanup.Retention <= 0 {
		c.Cleanup.Retention = defaultRetention
	}
	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = defaultCleanupEvery
	}
	if c.Cleanup.Limit <= 0 {
		c.Cleanup.Limit = defaultCleanupLimit
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdown
	}
}

// resolveUploadLimit never fails: an absent or malformed value means unbounded.
func (c *Config) resolveUploadLimit() int {
	raw := strings.TrimSpace(c.RawUploadLimit)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.Warnings = append(c.Warnings,
			fmt.Sprintf("upload_limit %q is not a non-negative integer, using 0 (unbounded)", raw))

		return 0
	}

	return n
}

// Validate reports configuration that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Database.Dialect(); err != nil {
		errs = append(errs, fmt.Errorf("database.driver: %w", err))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for i, b := range c.Backends {
		if strings.TrimSpace(b.Name) == "" {
			errs = append(errs, fmt.Errorf("backends[%d].name is required", i))
			continue
		}
		if _, dup := seen[b.Name]; dup {
			errs = append(errs, fmt.Errorf("backends[%d]: duplicate name %q", i, b.Name))
		}
		seen[b.Name] = struct{}{}
	}
	switch c.Lock.Type {
	case LockNone, LockDatabase:
	case LockRedis:
		if strings.TrimSpace(c.Lock.RedisURL) == "" {
			errs = append(errs, errors.New("lock.redis_url is required for redis locks"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.type: unknown %q", c.Lock.Type))
	}
	if c.TransferTimeout < 0 {
		errs = append(errs, errors.New("transfer_timeout must be >= 0"))
	}
	if c.TransferRate < 0 {
		errs = append(errs, errors.New("transfer_rate must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}

	return nil
}
