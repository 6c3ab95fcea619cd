package sqlstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestNewCleanupMaintainerDefaults(t *testing.T) {
	db := &sql.DB{}
	maintainer, err := NewCleanupMaintainer(db, MustNewErrorStore(), CleanupMaintainerConfig{
		Retention: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("expected maintainer, got %v", err)
	}
	if maintainer.cfg.CheckEvery != defaultCleanupEvery {
		t.Fatalf("expected default check interval")
	}
	if maintainer.cfg.Limit != defaultCleanupLimit {
		t.Fatalf("expected default limit")
	}
	if maintainer.cfg.LockName != "filetransfer:cleanup:filestoragetransfer_error" {
		t.Fatalf("unexpected lock name %q", maintainer.cfg.LockName)
	}
}

func TestNewCleanupMaintainerValidation(t *testing.T) {
	db := &sql.DB{}
	store := MustNewErrorStore()
	if _, err := NewCleanupMaintainer(nil, store, CleanupMaintainerConfig{Retention: time.Hour}); err != ErrDBRequired {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}
	if _, err := NewCleanupMaintainer(db, nil, CleanupMaintainerConfig{Retention: time.Hour}); err != ErrStoreRequired {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := NewCleanupMaintainer(db, store, CleanupMaintainerConfig{Retention: 0}); err != ErrCleanupRetentionInvalid {
		t.Fatalf("expected ErrCleanupRetentionInvalid, got %v", err)
	}
	if _, err := NewCleanupMaintainer(db, store, CleanupMaintainerConfig{Retention: time.Hour, Limit: -1}); err != ErrCleanupLimitInvalid {
		t.Fatalf("expected ErrCleanupLimitInvalid, got %v", err)
	}
}

func TestCleanupMySQLUsesLockAndOrderedDelete(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()
	maintainer, err := NewCleanupMaintainer(db, store, CleanupMaintainerConfig{
		Retention: time.Hour,
		Limit:     50,
		Clock:     fixedNow(attemptTime),
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, 0)")).
		WithArgs("filetransfer:cleanup:filestoragetransfer_error").
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM filestoragetransfer_error WHERE execution_time <= ? ORDER BY id_error LIMIT ?")).
		WithArgs(attemptTime.Add(-time.Hour), 50).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")).
		WithArgs("filetransfer:cleanup:filestoragetransfer_error").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(int64(1)))

	deleted, err := maintainer.Ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupSkipsWhenLockHeld(t *testing.T) {
	db, mock := newMock(t)
	maintainer, err := NewCleanupMaintainer(db, MustNewErrorStore(), CleanupMaintainerConfig{Retention: time.Hour})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT GET_LOCK(?, 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(int64(0)))

	deleted, err := maintainer.Ensure(context.Background())
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupPostgresQuery(t *testing.T) {
	query := buildCleanupQuery(Postgres, "filestoragetransfer_error")
	want := "DELETE FROM filestoragetransfer_error WHERE id_error IN (SELECT id_error FROM filestoragetransfer_error WHERE execution_time <= $1 ORDER BY id_error LIMIT $2)"
	if query != want {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestCleanupValidation(t *testing.T) {
	db, _ := newMock(t)
	store := MustNewErrorStore()
	if _, err := store.Cleanup(context.Background(), db, CleanupOptions{}); err != ErrCleanupBeforeRequired {
		t.Fatalf("expected ErrCleanupBeforeRequired, got %v", err)
	}
	if _, err := store.Cleanup(context.Background(), db, CleanupOptions{Before: attemptTime, Limit: -1}); err != ErrCleanupLimitInvalid {
		t.Fatalf("expected ErrCleanupLimitInvalid, got %v", err)
	}
}
