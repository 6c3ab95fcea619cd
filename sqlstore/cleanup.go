package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/velmie/filetransfer"
)

const (
	defaultCleanupLimit      = 10000
	defaultCleanupEvery      = time.Hour
	defaultCleanupLockPrefix = "filetransfer:cleanup:"
)

// CleanupOptions defines which error records a cleanup pass removes.
type CleanupOptions struct {
	// Before removes records whose execution time is at or before this instant (required).
	Before time.Time
	// Limit caps the number of rows deleted per call (0 uses the default).
	Limit int
}

// Cleanup deletes old error records through q, oldest ids first.
func (s *ErrorStore) Cleanup(ctx context.Context, q Querier, opts CleanupOptions) (int64, error) {
	if q == nil {
		return 0, ErrQuerierRequired
	}
	if opts.Before.IsZero() {
		return 0, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultCleanupLimit
	}
	if limit < 0 {
		return 0, ErrCleanupLimitInvalid
	}

	res, err := q.ExecContext(ctx, buildCleanupQuery(s.cfg.Dialect, s.table), s.cfg.Dialect.timeArg(opts.Before), limit)
	if err != nil {
		return 0, filetransfer.NewStorageError("cleanup", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, filetransfer.NewStorageError("cleanup rows", err)
	}

	return affected, nil
}

func buildCleanupQuery(d Dialect, table string) string {
	// #nosec G201 -- table name is sanitized.
	if d == MySQL {
		return fmt.Sprintf("DELETE FROM %s WHERE execution_time <= ? ORDER BY id_error LIMIT ?", table)
	}

	return d.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE id_error IN (SELECT id_error FROM %s WHERE execution_time <= ? ORDER BY id_error LIMIT ?)",
		table,
		table,
	))
}

// CleanupMaintainerConfig controls periodic removal of old error records.
type CleanupMaintainerConfig struct {
	// Retention removes records older than now-retention (required).
	Retention time.Duration
	// CheckEvery is the interval between cleanup runs.
	CheckEvery time.Duration
	// Limit caps the number of rows deleted per run (0 uses the default).
	Limit int
	// LockName is the advisory lock name. Defaults to filetransfer:cleanup:<table>.
	LockName string
	// Clock overrides time source (useful for tests).
	Clock filetransfer.Clock
	// Logger receives warnings about cleanup failures.
	Logger filetransfer.Logger
}

// CleanupMaintainer runs periodic cleanup of the error ledger. Only one session
// across all processes cleans at a time.
type CleanupMaintainer struct {
	db     *sql.DB
	store  *ErrorStore
	locker *AdvisoryLocker
	cfg    CleanupMaintainerConfig
}

// NewCleanupMaintainer creates a new cleanup maintainer with defaults applied.
func NewCleanupMaintainer(db *sql.DB, store *ErrorStore, cfg CleanupMaintainerConfig) (*CleanupMaintainer, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Retention <= 0 {
		return nil, ErrCleanupRetentionInvalid
	}
	if cfg.Clock == nil {
		cfg.Clock = filetransfer.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = filetransfer.NopLogger{}
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = defaultCleanupEvery
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultCleanupLimit
	}
	if cfg.Limit < 0 {
		return nil, ErrCleanupLimitInvalid
	}
	if cfg.LockName == "" {
		cfg.LockName = defaultCleanupLockPrefix + store.Table()
	}

	locker, err := NewAdvisoryLocker(db, store.Dialect(), cfg.LockName)
	if err != nil {
		return nil, err
	}

	return &CleanupMaintainer{db: db, store: store, locker: locker, cfg: cfg}, nil
}

// Run periodically deletes old error records until the context is canceled.
func (m *CleanupMaintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckEvery)
	defer ticker.Stop()

	if _, err := m.Ensure(ctx); err != nil {
		m.cfg.Logger.Warn("filetransfer cleanup failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Ensure(ctx); err != nil {
				m.cfg.Logger.Warn("filetransfer cleanup failed", "err", err)
			}
		}
	}
}

// Ensure executes a single cleanup pass and returns the number of deleted records.
func (m *CleanupMaintainer) Ensure(ctx context.Context) (int64, error) {
	unlock, locked, err := m.locker.TryLock(ctx)
	if err != nil {
		return 0, err
	}
	if !locked {
		m.cfg.Logger.Debug("filetransfer cleanup lock held by another session")

		return 0, nil
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.cfg.Logger.Warn("filetransfer cleanup release lock failed", "err", err)
		}
	}()

	before := m.cfg.Clock.Now().Add(-m.cfg.Retention)
	deleted, err := m.store.Cleanup(ctx, m.db, CleanupOptions{Before: before, Limit: m.cfg.Limit})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		m.cfg.Logger.Info("filetransfer cleanup removed error records", "count", deleted, "before", before)
	}

	return deleted, nil
}
