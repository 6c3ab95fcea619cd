package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/velmie/filetransfer"
)

// AdvisoryLocker takes a named, session-scoped database lock. It uses GET_LOCK on MySQL
// and pg_try_advisory_lock on PostgreSQL. SQLite has no sessions to coordinate, so the
// lock is always granted there.
type AdvisoryLocker struct {
	db      *sql.DB
	dialect Dialect
	name    string
}

var _ filetransfer.Locker = (*AdvisoryLocker)(nil)

// NewAdvisoryLocker constructs a locker for name.
func NewAdvisoryLocker(db *sql.DB, dialect Dialect, name string) (*AdvisoryLocker, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if name == "" {
		return nil, ErrLockNameRequired
	}

	return &AdvisoryLocker{db: db, dialect: dialect, name: name}, nil
}

// Name returns the lock name.
func (l *AdvisoryLocker) Name() string {
	return l.name
}

// TryLock implements filetransfer.Locker. The lock lives on a dedicated connection
// that is returned to the pool by the unlock function.
func (l *AdvisoryLocker) TryLock(ctx context.Context) (filetransfer.UnlockFunc, bool, error) {
	if l.dialect == SQLite {
		return func(context.Context) error { return nil }, true, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("filetransfer sqlstore: lock conn failed: %w", err)
	}

	locked, err := l.acquire(ctx, conn)
	if err != nil || !locked {
		closeErr := conn.Close()
		if err != nil {
			return nil, false, errors.Join(err, closeErr)
		}

		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		releaseErr := l.release(ctx, conn)

		return errors.Join(releaseErr, conn.Close())
	}

	return unlock, true, nil
}

func (l *AdvisoryLocker) acquire(ctx context.Context, conn *sql.Conn) (bool, error) {
	if l.dialect == Postgres {
		var got bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", l.name).Scan(&got); err != nil {
			return false, fmt.Errorf("filetransfer sqlstore: acquire lock failed: %w", err)
		}

		return got, nil
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", l.name).Scan(&got); err != nil {
		return false, fmt.Errorf("filetransfer sqlstore: acquire lock failed: %w", err)
	}

	return got.Valid && got.Int64 == 1, nil
}

func (l *AdvisoryLocker) release(ctx context.Context, conn *sql.Conn) error {
	query := "SELECT RELEASE_LOCK(?)"
	if l.dialect == Postgres {
		query = "SELECT pg_advisory_unlock(hashtext($1))"
	}

	var released sql.NullBool
	if err := conn.QueryRowContext(ctx, query, l.name).Scan(&released); err != nil {
		return fmt.Errorf("filetransfer sqlstore: release lock failed: %w", err)
	}

	return nil
}
