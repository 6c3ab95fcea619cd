package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides scalar settings from FILETRANSFER_* variables. Backends are
// only configurable in the file.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	// Left raw: a malformed batch size becomes a warning, not an error.
	str("UPLOAD_LIMIT", &cfg.RawUploadLimit)
	str("SCHEDULE", &cfg.Schedule)
	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_DSN", &cfg.Database.DSN)
	str("DB_ERROR_TABLE", &cfg.Database.ErrorTable)
	str("DB_REQUEST_TABLE", &cfg.Database.RequestTable)
	boolean("DELETE_SOURCE", &cfg.DeleteSource)
	dur("TRANSFER_TIMEOUT", &cfg.TransferTimeout)
	if v, ok := lookup(EnvPrefix + "TRANSFER_RATE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTRANSFER_RATE: %w", EnvPrefix, err))
		} else {
			cfg.TransferRate = f
		}
	}
	integer("TRANSFER_BURST", &cfg.TransferBurst)
	str("LOCK_TYPE", &cfg.Lock.Type)
	str("LOCK_NAME", &cfg.Lock.Name)
	str("REDIS_URL", &cfg.Lock.RedisURL)
	dur("LOCK_TTL", &cfg.Lock.TTL)
	str("ADMIN_ADDR", &cfg.Admin.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("LOG_FILE", &cfg.Log.File)
	boolean("CLEANUP_ENABLED", &cfg.Cleanup.Enabled)
	dur("CLEANUP_RETENTION", &cfg.Cleanup.Retention)
	dur("CLEANUP_INTERVAL", &cfg.Cleanup.Interval)
	integer("CLEANUP_LIMIT", &cfg.Cleanup.Limit)
	dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}

	return nil
}
