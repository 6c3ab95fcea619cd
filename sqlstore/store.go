package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/velmie/filetransfer"
)

const placeholderGrowth = 2

// Querier is the storage-context handle every ErrorStore operation runs on.
// *sql.DB, *sql.Tx and *sql.Conn satisfy it; the caller owns its lifecycle.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrorStore persists ErrorRecords. It holds no connection of its own.
//
// Every failure of the underlying database is returned as *filetransfer.StorageError.
// Neither the request reference nor the code is validated.
type ErrorStore struct {
	cfg     Config
	table   string
	queries errorQueries
}

// NewErrorStore constructs an error store with validated configuration.
func NewErrorStore(opts ...Option) (*ErrorStore, error) {
	cfg := buildConfig(opts)

	table, err := sanitizeTableName(cfg.ErrorTable)
	if err != nil {
		return nil, err
	}

	return &ErrorStore{
		cfg:     cfg,
		table:   table,
		queries: newErrorQueries(cfg.Dialect, table),
	}, nil
}

// MustNewErrorStore constructs an error store or panics on error.
func MustNewErrorStore(opts ...Option) *ErrorStore {
	store, err := NewErrorStore(opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Table returns the sanitized table name.
func (s *ErrorStore) Table() string {
	return s.table
}

// Dialect returns the configured dialect.
func (s *ErrorStore) Dialect() Dialect {
	return s.cfg.Dialect
}

// Insert persists record and sets record.ID to the generated identifier.
// record.ExecutionTime is truncated to microseconds, the column precision on
// every dialect, so the caller holds exactly what Load returns.
func (s *ErrorStore) Insert(ctx context.Context, q Querier, record *filetransfer.ErrorRecord) error {
	if q == nil {
		return ErrQuerierRequired
	}
	record.ExecutionTime = record.ExecutionTime.Truncate(time.Microsecond)

	args := []any{
		record.RequestID,
		record.Code,
		truncateMessage(record.Message, s.cfg.MaxMessageLen),
		record.Trace,
		s.cfg.Dialect.timeArg(record.ExecutionTime),
	}

	if s.cfg.Dialect == Postgres {
		var id int64
		if err := q.QueryRowContext(ctx, s.queries.insert, args...).Scan(&id); err != nil {
			return filetransfer.NewStorageError("insert", err)
		}
		record.ID = id

		return nil
	}

	res, err := q.ExecContext(ctx, s.queries.insert, args...)
	if err != nil {
		return filetransfer.NewStorageError("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return filetransfer.NewStorageError("insert id", err)
	}
	record.ID = id

	return nil
}

// Delete removes the record with id. A missing record is not an error.
func (s *ErrorStore) Delete(ctx context.Context, q Querier, id int64) error {
	if q == nil {
		return ErrQuerierRequired
	}
	if _, err := q.ExecContext(ctx, s.queries.deleteByID, id); err != nil {
		return filetransfer.NewStorageError("delete", err)
	}

	return nil
}

// Update overwrites request id, code, message and trace of the record at record.ID.
// The execution time keeps the value written on insert.
func (s *ErrorStore) Update(ctx context.Context, q Querier, record filetransfer.ErrorRecord) error {
	if q == nil {
		return ErrQuerierRequired
	}

	_, err := q.ExecContext(
		ctx,
		s.queries.update,
		record.RequestID,
		record.Code,
		truncateMessage(record.Message, s.cfg.MaxMessageLen),
		record.Trace,
		record.ID,
	)
	if err != nil {
		return filetransfer.NewStorageError("update", err)
	}

	return nil
}

// Load returns the record with id. ok is false when there is none.
func (s *ErrorStore) Load(ctx context.Context, q Querier, id int64) (filetransfer.ErrorRecord, bool, error) {
	if q == nil {
		return filetransfer.ErrorRecord{}, false, ErrQuerierRequired
	}

	record, err := scanErrorRecord(q.QueryRowContext(ctx, s.queries.load, id))
	if errors.Is(err, sql.ErrNoRows) {
		return filetransfer.ErrorRecord{}, false, nil
	}
	if err != nil {
		return filetransfer.ErrorRecord{}, false, filetransfer.NewStorageError("load", err)
	}

	return record, true, nil
}

// ListAll returns every record. The order is unspecified.
func (s *ErrorStore) ListAll(ctx context.Context, q Querier) ([]filetransfer.ErrorRecord, error) {
	if q == nil {
		return nil, ErrQuerierRequired
	}

	return s.list(ctx, q, "list all", s.queries.listAll)
}

// ListAllIDs returns every record id. The order is unspecified.
func (s *ErrorStore) ListAllIDs(ctx context.Context, q Querier) ([]int64, error) {
	if q == nil {
		return nil, ErrQuerierRequired
	}

	rows, err := q.QueryContext(ctx, s.queries.listAllIDs)
	if err != nil {
		return nil, filetransfer.NewStorageError("list ids", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, filetransfer.NewStorageError("list ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, filetransfer.NewStorageError("list ids", err)
	}

	return ids, nil
}

// ListReferences returns id, request id and message of every record, by id.
func (s *ErrorStore) ListReferences(ctx context.Context, q Querier) ([]filetransfer.ErrorReference, error) {
	if q == nil {
		return nil, ErrQuerierRequired
	}

	rows, err := q.QueryContext(ctx, s.queries.listReferences)
	if err != nil {
		return nil, filetransfer.NewStorageError("list references", err)
	}
	defer rows.Close()

	refs := make([]filetransfer.ErrorReference, 0)
	for rows.Next() {
		var (
			ref     filetransfer.ErrorReference
			message sql.NullString
		)
		if err := rows.Scan(&ref.ID, &ref.RequestID, &message); err != nil {
			return nil, filetransfer.NewStorageError("list references", err)
		}
		ref.Message = message.String
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, filetransfer.NewStorageError("list references", err)
	}

	return refs, nil
}

// ListByIDs returns the records whose id is in ids. An empty ids returns an empty
// slice without touching q, so q may be nil or unreachable in that case.
func (s *ErrorStore) ListByIDs(ctx context.Context, q Querier, ids []int64) ([]filetransfer.ErrorRecord, error) {
	if len(ids) == 0 {
		return []filetransfer.ErrorRecord{}, nil
	}
	if q == nil {
		return nil, ErrQuerierRequired
	}

	query := buildListByIDsQuery(s.cfg.Dialect, s.table, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.list(ctx, q, "list by ids", query, args...)
}

// ListByRequestID returns every record referencing requestID.
func (s *ErrorStore) ListByRequestID(ctx context.Context, q Querier, requestID int64) ([]filetransfer.ErrorRecord, error) {
	if q == nil {
		return nil, ErrQuerierRequired
	}

	return s.list(ctx, q, "list by request", s.queries.listByRequestID, requestID)
}

func (s *ErrorStore) list(ctx context.Context, q Querier, op, query string, args ...any) ([]filetransfer.ErrorRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, filetransfer.NewStorageError(op, err)
	}
	defer rows.Close()

	records := make([]filetransfer.ErrorRecord, 0)
	for rows.Next() {
		record, err := scanErrorRecord(rows)
		if err != nil {
			return nil, filetransfer.NewStorageError(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, filetransfer.NewStorageError(op, err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanErrorRecord(row rowScanner) (filetransfer.ErrorRecord, error) {
	var (
		record  filetransfer.ErrorRecord
		message sql.NullString
		trace   sql.NullString
		at      nullTime
	)
	if err := row.Scan(&record.ID, &record.RequestID, &record.Code, &message, &trace, &at); err != nil {
		return filetransfer.ErrorRecord{}, err
	}
	record.Message = message.String
	record.Trace = trace.String
	record.ExecutionTime = at.Time

	return record, nil
}

func truncateMessage(msg string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(msg) <= limit {
		return msg
	}

	return string([]rune(msg)[:limit])
}
