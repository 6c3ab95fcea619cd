package sqlstore

import (
	"context"
	"database/sql"

	"github.com/velmie/filetransfer"
)

// Ledger binds an ErrorStore to a connection pool. Each call checks out its own
// connection and returns it before the call ends, whatever the outcome.
type Ledger struct {
	db    *sql.DB
	store *ErrorStore
}

var _ filetransfer.ErrorRecorder = (*Ledger)(nil)

// NewLedger constructs a ledger over db.
func NewLedger(db *sql.DB, store *ErrorStore) (*Ledger, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	return &Ledger{db: db, store: store}, nil
}

// Store returns the underlying error store.
func (l *Ledger) Store() *ErrorStore {
	return l.store
}

func (l *Ledger) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return filetransfer.NewStorageError("acquire connection", err)
	}
	defer conn.Close()

	return fn(conn)
}

// RecordError implements filetransfer.ErrorRecorder.
func (l *Ledger) RecordError(ctx context.Context, record *filetransfer.ErrorRecord) error {
	return l.Insert(ctx, record)
}

// Insert persists record and sets its ID.
func (l *Ledger) Insert(ctx context.Context, record *filetransfer.ErrorRecord) error {
	return l.withConn(ctx, func(conn *sql.Conn) error {
		return l.store.Insert(ctx, conn, record)
	})
}

// Update overwrites the record at record.ID, keeping its execution time.
func (l *Ledger) Update(ctx context.Context, record filetransfer.ErrorRecord) error {
	return l.withConn(ctx, func(conn *sql.Conn) error {
		return l.store.Update(ctx, conn, record)
	})
}

// Delete removes the record with id, if any.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	return l.withConn(ctx, func(conn *sql.Conn) error {
		return l.store.Delete(ctx, conn, id)
	})
}

// Load returns the record with id.
func (l *Ledger) Load(ctx context.Context, id int64) (filetransfer.ErrorRecord, bool, error) {
	var (
		record filetransfer.ErrorRecord
		ok     bool
	)
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		record, ok, err = l.store.Load(ctx, conn, id)

		return err
	})

	return record, ok, err
}

// ListAll returns every record.
func (l *Ledger) ListAll(ctx context.Context) ([]filetransfer.ErrorRecord, error) {
	var records []filetransfer.ErrorRecord
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = l.store.ListAll(ctx, conn)

		return err
	})

	return records, err
}

// ListAllIDs returns every record id.
func (l *Ledger) ListAllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		ids, err = l.store.ListAllIDs(ctx, conn)

		return err
	})

	return ids, err
}

// ListReferences returns the id, request id and message of every record.
func (l *Ledger) ListReferences(ctx context.Context) ([]filetransfer.ErrorReference, error) {
	var refs []filetransfer.ErrorReference
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		refs, err = l.store.ListReferences(ctx, conn)

		return err
	})

	return refs, err
}

// ListByIDs returns the records with the given ids. No connection is taken for an
// empty ids.
func (l *Ledger) ListByIDs(ctx context.Context, ids []int64) ([]filetransfer.ErrorRecord, error) {
	if len(ids) == 0 {
		return []filetransfer.ErrorRecord{}, nil
	}

	var records []filetransfer.ErrorRecord
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = l.store.ListByIDs(ctx, conn, ids)

		return err
	})

	return records, err
}

// ListByRequestID returns every record of one request.
func (l *Ledger) ListByRequestID(ctx context.Context, requestID int64) ([]filetransfer.ErrorRecord, error) {
	var records []filetransfer.ErrorRecord
	err := l.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		records, err = l.store.ListByRequestID(ctx, conn, requestID)

		return err
	})

	return records, err
}
