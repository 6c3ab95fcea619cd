//go:build integration

package sqlstore_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/velmie/filetransfer"
	"github.com/velmie/filetransfer/internal/testutil"
	"github.com/velmie/filetransfer/sqlstore"
)

func TestMySQLErrorLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	env := testutil.StartMySQLContainer(t, ctx)
	require.NoError(t, sqlstore.ApplySchema(ctx, env.DB))

	ledger, err := sqlstore.NewLedger(env.DB, sqlstore.MustNewErrorStore())
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	message := strings.Repeat("timeout ", 500)
	record := filetransfer.ErrorRecord{RequestID: 102, Code: 5, Message: message, Trace: "i/o timeout", ExecutionTime: at}
	require.NoError(t, ledger.Insert(ctx, &record))
	require.NotZero(t, record.ID)
	require.Equal(t, at.Truncate(time.Microsecond), record.ExecutionTime)

	loaded, ok, err := ledger.Load(ctx, record.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.RequestID, loaded.RequestID)
	require.Equal(t, record.Code, loaded.Code)
	require.Equal(t, record.Message, loaded.Message)
	require.Equal(t, record.Trace, loaded.Trace)
	require.True(t, record.ExecutionTime.Equal(loaded.ExecutionTime), "expected %v, got %v", record.ExecutionTime, loaded.ExecutionTime)

	second := filetransfer.ErrorRecord{RequestID: 102, Code: 6, ExecutionTime: at.Add(time.Minute)}
	require.NoError(t, ledger.Insert(ctx, &second))
	require.Greater(t, second.ID, record.ID)

	byRequest, err := ledger.ListByRequestID(ctx, 102)
	require.NoError(t, err)
	require.Len(t, byRequest, 2)

	byIDs, err := ledger.ListByIDs(ctx, []int64{second.ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 1)
	require.Empty(t, byIDs[0].Message)

	require.NoError(t, ledger.Delete(ctx, record.ID))
	require.NoError(t, ledger.Delete(ctx, record.ID))
	ids, err := ledger.ListAllIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{second.ID}, ids)
}

func TestMySQLDaemonCycleIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	env := testutil.StartMySQLContainer(t, ctx)
	require.NoError(t, sqlstore.ApplySchema(ctx, env.DB))

	requests, err := sqlstore.NewRequestStore(env.DB)
	require.NoError(t, err)
	ledger, err := sqlstore.NewLedger(env.DB, sqlstore.MustNewErrorStore())
	require.NoError(t, err)

	asOf := time.Now().UTC()
	enqueueRequests(t, ctx, env.DB, requests, asOf.Add(-time.Minute), 101, 102, 103)

	transferer := filetransfer.TransferFunc(func(ctx context.Context, req filetransfer.Request) error {
		if req.ID == 102 {
			return filetransfer.NewTransferError(5, "timeout", nil)
		}
		return requests.MarkDone(ctx, req.ID, req.FileKey)
	})
	locker, err := sqlstore.NewAdvisoryLocker(env.DB, sqlstore.MySQL, "filetransfer:cycle")
	require.NoError(t, err)

	daemon := filetransfer.NewDaemon(requests, transferer, ledger, filetransfer.WithBatchSize(2), filetransfer.WithLocker(locker))
	summary, err := daemon.RunCycle(ctx, asOf)
	require.NoError(t, err)
	require.False(t, summary.Skipped)
	require.Equal(t, 2, summary.Selected)

	records, err := ledger.ListByRequestID(ctx, 102)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 5, records[0].Code)
	require.True(t, asOf.Truncate(time.Microsecond).Equal(records[0].ExecutionTime))

	pending, err := requests.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, pending)
}

func TestMySQLAdvisoryLockExclusiveIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	env := testutil.StartMySQLContainer(t, ctx)

	first, err := sqlstore.NewAdvisoryLocker(env.DB, sqlstore.MySQL, "filetransfer:cycle")
	require.NoError(t, err)
	second, err := sqlstore.NewAdvisoryLocker(env.DB, sqlstore.MySQL, "filetransfer:cycle")
	require.NoError(t, err)

	unlock, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, unlock(ctx))

	unlock, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, unlock(ctx))
}

func TestMySQLCleanupIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	env := testutil.StartMySQLContainer(t, ctx)
	require.NoError(t, sqlstore.ApplySchema(ctx, env.DB))

	store := sqlstore.MustNewErrorStore()
	now := time.Now().UTC()
	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		record := filetransfer.ErrorRecord{RequestID: 1, ExecutionTime: now.Add(-age)}
		require.NoError(t, store.Insert(ctx, env.DB, &record))
	}

	maintainer, err := sqlstore.NewCleanupMaintainer(env.DB, store, sqlstore.CleanupMaintainerConfig{
		Retention: 24 * time.Hour,
		Clock:     filetransfer.FixedClock(now),
	})
	require.NoError(t, err)

	deleted, err := maintainer.Ensure(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	remaining, err := store.ListAll(ctx, env.DB)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func enqueueRequests(t *testing.T, ctx context.Context, db *sql.DB, store *sqlstore.RequestStore, due time.Time, ids ...int64) {
	t.Helper()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	for _, id := range ids {
		_, err := store.Enqueue(ctx, tx, filetransfer.Request{
			ID:            id,
			FileKey:       "docs/file.pdf",
			SourceService: "old",
			TargetService: "new",
			ExecutionTime: due,
		})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}
