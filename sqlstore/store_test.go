package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/velmie/filetransfer"
)

var attemptTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db, mock
}

func TestErrorStoreInsertMySQL(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO filestoragetransfer_error (id_request, code, error_message, error_trace, execution_time) VALUES (?, ?, ?, ?, ?)",
	)).
		WithArgs(int64(102), 5, "timeout", "trace", attemptTime).
		WillReturnResult(sqlmock.NewResult(42, 1))

	record := filetransfer.ErrorRecord{RequestID: 102, Code: 5, Message: "timeout", Trace: "trace", ExecutionTime: attemptTime}
	require.NoError(t, store.Insert(context.Background(), db, &record))
	require.Equal(t, int64(42), record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreInsertPostgresReturning(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore(WithDialect(Postgres))

	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO filestoragetransfer_error (id_request, code, error_message, error_trace, execution_time) VALUES ($1, $2, $3, $4, $5) RETURNING id_error",
	)).
		WithArgs(int64(7), 3, "", "", attemptTime).
		WillReturnRows(sqlmock.NewRows([]string{"id_error"}).AddRow(int64(9)))

	record := filetransfer.ErrorRecord{RequestID: 7, Code: 3, ExecutionTime: attemptTime}
	require.NoError(t, store.Insert(context.Background(), db, &record))
	require.Equal(t, int64(9), record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreInsertFailureIsStorageFailure(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()
	cause := errors.New("Error 1452: foreign key constraint fails")

	mock.ExpectExec("INSERT INTO filestoragetransfer_error").WillReturnError(cause)

	record := filetransfer.ErrorRecord{RequestID: 1, ExecutionTime: attemptTime}
	err := store.Insert(context.Background(), db, &record)
	require.ErrorIs(t, err, filetransfer.ErrStorageFailure)
	require.ErrorIs(t, err, cause)
	require.Zero(t, record.ID)

	var storageErr *filetransfer.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "insert", storageErr.Op)
}

func TestErrorStoreInsertTruncatesMessage(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore(WithMaxMessageLen(4))
	trace := strings.Repeat("t", 5000)

	mock.ExpectExec("INSERT INTO filestoragetransfer_error").
		WithArgs(int64(1), 2, "héll", trace, attemptTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := filetransfer.ErrorRecord{RequestID: 1, Code: 2, Message: "héllo world", Trace: trace, ExecutionTime: attemptTime}
	require.NoError(t, store.Insert(context.Background(), db, &record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreUpdateKeepsExecutionTime(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE filestoragetransfer_error SET id_request = ?, code = ?, error_message = ?, error_trace = ? WHERE id_error = ?",
	)).
		WithArgs(int64(102), 8, "reclassified", "", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := filetransfer.ErrorRecord{ID: 3, RequestID: 102, Code: 8, Message: "reclassified", ExecutionTime: attemptTime.Add(time.Hour)}
	require.NoError(t, store.Update(context.Background(), db, record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreDeleteMissingIsNotAnError(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM filestoragetransfer_error WHERE id_error = ?")).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), db, 404))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreLoad(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()
	query := regexp.QuoteMeta(
		"SELECT id_error, id_request, code, error_message, error_trace, execution_time FROM filestoragetransfer_error WHERE id_error = ?",
	)
	columns := []string{"id_error", "id_request", "code", "error_message", "error_trace", "execution_time"}

	mock.ExpectQuery(query).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(1), int64(102), 5, nil, nil, attemptTime))
	mock.ExpectQuery(query).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns))

	record, ok, err := store.Load(context.Background(), db, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, filetransfer.ErrorRecord{ID: 1, RequestID: 102, Code: 5, ExecutionTime: attemptTime}, record)

	_, ok, err = store.Load(context.Background(), db, 2)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreListByIDsBindsEveryID(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore(WithDialect(Postgres))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id_error, id_request, code, error_message, error_trace, execution_time FROM filestoragetransfer_error WHERE id_error IN ($1,$2,$3)",
	)).
		WithArgs(int64(1), int64(5), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id_error", "id_request", "code", "error_message", "error_trace", "execution_time"}).
			AddRow(int64(1), int64(10), 1, "a", "ta", attemptTime).
			AddRow(int64(9), int64(11), 2, "b", "tb", attemptTime))

	records, err := store.ListByIDs(context.Background(), db, []int64{1, 5, 9})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreListByIDsEmptyIssuesNoQuery(t *testing.T) {
	store := MustNewErrorStore()

	records, err := store.ListByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)

	db, mock := newMock(t)
	records, err = store.ListByIDs(context.Background(), db, []int64{})
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreListAllIDs(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id_error FROM filestoragetransfer_error")).
		WillReturnRows(sqlmock.NewRows([]string{"id_error"}).AddRow(int64(3)).AddRow(int64(1)))

	ids, err := store.ListAllIDs(context.Background(), db)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestErrorStoreListReferences(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id_error, id_request, error_message FROM filestoragetransfer_error ORDER BY id_error",
	)).
		WillReturnRows(sqlmock.NewRows([]string{"id_error", "id_request", "error_message"}).
			AddRow(int64(1), int64(102), "timeout").
			AddRow(int64(2), int64(103), nil))

	refs, err := store.ListReferences(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, []filetransfer.ErrorReference{
		{ID: 1, RequestID: 102, Message: "timeout"},
		{ID: 2, RequestID: 103},
	}, refs)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = store.ListReferences(context.Background(), nil)
	require.ErrorIs(t, err, ErrQuerierRequired)
}

func TestErrorStoreListByRequestIDQueryError(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id_error, id_request, code, error_message, error_trace, execution_time FROM filestoragetransfer_error WHERE id_request = ?",
	)).
		WithArgs(int64(102)).
		WillReturnError(sql.ErrConnDone)

	_, err := store.ListByRequestID(context.Background(), db, 102)
	require.ErrorIs(t, err, filetransfer.ErrStorageFailure)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestErrorStoreRequiresQuerier(t *testing.T) {
	store := MustNewErrorStore()
	ctx := context.Background()

	require.ErrorIs(t, store.Insert(ctx, nil, &filetransfer.ErrorRecord{}), ErrQuerierRequired)
	require.ErrorIs(t, store.Delete(ctx, nil, 1), ErrQuerierRequired)
	require.ErrorIs(t, store.Update(ctx, nil, filetransfer.ErrorRecord{}), ErrQuerierRequired)
	_, _, err := store.Load(ctx, nil, 1)
	require.ErrorIs(t, err, ErrQuerierRequired)
	_, err = store.ListByIDs(ctx, nil, []int64{1})
	require.ErrorIs(t, err, ErrQuerierRequired)
}

func TestNewErrorStoreRejectsBadTable(t *testing.T) {
	_, err := NewErrorStore(WithErrorTable("errors; DROP TABLE x"))
	require.ErrorIs(t, err, ErrInvalidTableName)
}

func TestMakePlaceholders(t *testing.T) {
	if got := makePlaceholders(0); got != "" {
		t.Fatalf("expected empty placeholders, got %q", got)
	}
	if got := makePlaceholders(3); got != "?,?,?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
}

func TestTruncateMessage(t *testing.T) {
	msg := strings.Repeat("x", 1034)
	if got := truncateMessage(msg, 1024); len([]rune(got)) != 1024 {
		t.Fatalf("expected truncated message, got %d runes", len([]rune(got)))
	}
	if got := truncateMessage("short", 1024); got != "short" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := truncateMessage(msg, 0); got != msg {
		t.Fatalf("expected whole message without a limit, got %d runes", len([]rune(got)))
	}
}

func TestErrorStoreInsertKeepsLongMessageByDefault(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()
	msg := strings.Repeat("m", 5000)

	mock.ExpectExec("INSERT INTO filestoragetransfer_error").
		WithArgs(int64(1), 2, msg, "", attemptTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := filetransfer.ErrorRecord{RequestID: 1, Code: 2, Message: msg, ExecutionTime: attemptTime}
	require.NoError(t, store.Insert(context.Background(), db, &record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorStoreInsertTruncatesExecutionTimeToMicroseconds(t *testing.T) {
	db, mock := newMock(t)
	store := MustNewErrorStore()
	at := attemptTime.Add(123456789 * time.Nanosecond)
	stored := attemptTime.Add(123456 * time.Microsecond)

	mock.ExpectExec("INSERT INTO filestoragetransfer_error").
		WithArgs(int64(1), 2, "boom", "", stored).
		WillReturnResult(sqlmock.NewResult(4, 1))

	record := filetransfer.ErrorRecord{RequestID: 1, Code: 2, Message: "boom", ExecutionTime: at}
	require.NoError(t, store.Insert(context.Background(), db, &record))
	require.Equal(t, stored, record.ExecutionTime)
	require.NoError(t, mock.ExpectationsWereMet())
}
