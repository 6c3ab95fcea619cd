package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/velmie/filetransfer"
)

const maxSelectPrealloc = 256

// Executor allows enqueuing within an existing transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RequestStore is the SQL transfer request queue.
type RequestStore struct {
	db      *sql.DB
	cfg     Config
	table   string
	queries requestQueries
}

var _ filetransfer.RequestSelector = (*RequestStore)(nil)
var _ filetransfer.PendingCounter = (*RequestStore)(nil)

// NewRequestStore constructs a request store with validated configuration.
func NewRequestStore(db *sql.DB, opts ...Option) (*RequestStore, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	cfg := buildConfig(opts)
	table, err := sanitizeTableName(cfg.RequestTable)
	if err != nil {
		return nil, err
	}

	return &RequestStore{
		db:      db,
		cfg:     cfg,
		table:   table,
		queries: newRequestQueries(cfg.Dialect, table),
	}, nil
}

// Table returns the sanitized table name.
func (s *RequestStore) Table() string {
	return s.table
}

// SelectDue returns pending requests due at asOf, oldest first. limit <= 0 means no limit.
func (s *RequestStore) SelectDue(ctx context.Context, asOf time.Time, limit int) ([]filetransfer.Request, error) {
	var (
		rows *sql.Rows
		err  error
	)

	at := s.cfg.Dialect.timeArg(asOf)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.queries.selectDueMax, filetransfer.StatusPending, at, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.queries.selectDue, filetransfer.StatusPending, at)
	}
	if err != nil {
		return nil, filetransfer.NewStorageError("select due", err)
	}
	defer rows.Close()

	// limit is an upper bound, never an allocation hint.
	requests := make([]filetransfer.Request, 0, min(max(limit, 0), maxSelectPrealloc))
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, filetransfer.NewStorageError("select due", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, filetransfer.NewStorageError("select due", err)
	}

	return requests, nil
}

// Enqueue inserts a pending request using exec (transaction preferred) and returns its id.
// A non-zero req.ID is stored as given. A zero ExecutionTime means due immediately.
func (s *RequestStore) Enqueue(ctx context.Context, exec Executor, req filetransfer.Request) (int64, error) {
	if exec == nil {
		return 0, ErrQuerierRequired
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}

	now := s.cfg.Clock.Now()
	due := req.ExecutionTime
	if due.IsZero() {
		due = now
	}
	d := s.cfg.Dialect

	if req.ID != 0 {
		_, err := exec.ExecContext(
			ctx,
			s.queries.insertWithID,
			req.ID,
			req.FileKey,
			req.SourceService,
			req.TargetService,
			filetransfer.StatusPending,
			d.timeArg(due),
			d.timeArg(now),
		)
		if err != nil {
			return 0, filetransfer.NewStorageError("enqueue", err)
		}

		return req.ID, nil
	}

	args := []any{req.FileKey, req.SourceService, req.TargetService, filetransfer.StatusPending, d.timeArg(due), d.timeArg(now)}
	if d == Postgres {
		var id int64
		if err := exec.QueryRowContext(ctx, s.queries.insert, args...).Scan(&id); err != nil {
			return 0, filetransfer.NewStorageError("enqueue", err)
		}

		return id, nil
	}

	res, err := exec.ExecContext(ctx, s.queries.insert, args...)
	if err != nil {
		return 0, filetransfer.NewStorageError("enqueue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, filetransfer.NewStorageError("enqueue id", err)
	}

	return id, nil
}

// Load returns the request with id. ok is false when there is none.
func (s *RequestStore) Load(ctx context.Context, id int64) (filetransfer.Request, bool, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, s.queries.load, id))
	if errors.Is(err, sql.ErrNoRows) {
		return filetransfer.Request{}, false, nil
	}
	if err != nil {
		return filetransfer.Request{}, false, filetransfer.NewStorageError("load request", err)
	}

	return req, true, nil
}

// MarkDone moves a pending request to done and stores where the file now lives.
func (s *RequestStore) MarkDone(ctx context.Context, id int64, targetKey string) error {
	_, err := s.db.ExecContext(ctx, s.queries.markDone, filetransfer.StatusDone, targetKey, id, filetransfer.StatusPending)
	if err != nil {
		return filetransfer.NewStorageError("mark done", err)
	}

	return nil
}

// Reschedule moves the execution time of a pending request.
func (s *RequestStore) Reschedule(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.queries.reschedule, s.cfg.Dialect.timeArg(at), id, filetransfer.StatusPending)
	if err != nil {
		return filetransfer.NewStorageError("reschedule", err)
	}

	return nil
}

// Cancel withdraws a request regardless of its state.
func (s *RequestStore) Cancel(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.queries.setStatus, filetransfer.StatusCanceled, id); err != nil {
		return filetransfer.NewStorageError("cancel", err)
	}

	return nil
}

// PendingCount returns the number of pending requests.
func (s *RequestStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.queries.countPending, filetransfer.StatusPending).Scan(&count); err != nil {
		return 0, filetransfer.NewStorageError("pending count", err)
	}

	return count, nil
}

func scanRequest(row rowScanner) (filetransfer.Request, error) {
	var (
		req       filetransfer.Request
		targetKey sql.NullString
		status    int16
		due       nullTime
		created   nullTime
	)
	if err := row.Scan(
		&req.ID,
		&req.FileKey,
		&req.SourceService,
		&req.TargetService,
		&targetKey,
		&status,
		&due,
		&created,
	); err != nil {
		return filetransfer.Request{}, err
	}
	if !due.Valid {
		return filetransfer.Request{}, fmt.Errorf("filetransfer sqlstore: request %d has no execution time", req.ID)
	}
	req.TargetKey = targetKey.String
	req.Status = filetransfer.RequestStatus(status)
	req.ExecutionTime = due.Time
	req.CreatedAt = created.Time

	return req, nil
}
