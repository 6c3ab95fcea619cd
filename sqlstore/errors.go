package sqlstore

import "errors"

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("filetransfer sqlstore: db is required")
	// ErrQuerierRequired is returned when an operation is called with a nil querier.
	ErrQuerierRequired = errors.New("filetransfer sqlstore: querier is required")
	// ErrStoreRequired is returned when a ledger is built without an error store.
	ErrStoreRequired = errors.New("filetransfer sqlstore: error store is required")
	// ErrTableNameRequired is returned when a table name is empty.
	ErrTableNameRequired = errors.New("filetransfer sqlstore: table name is required")
	// ErrInvalidTableName is returned when a table name has disallowed characters.
	ErrInvalidTableName = errors.New("filetransfer sqlstore: invalid table name")
	// ErrUnknownDialect is returned for an unsupported driver or dialect name.
	ErrUnknownDialect = errors.New("filetransfer sqlstore: unknown dialect")
	// ErrLockNameRequired is returned when an advisory lock has no name.
	ErrLockNameRequired = errors.New("filetransfer sqlstore: lock name is required")
	// ErrCleanupBeforeRequired is returned when cleanup is called without a cutoff time.
	ErrCleanupBeforeRequired = errors.New("filetransfer sqlstore: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("filetransfer sqlstore: cleanup limit must be positive")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("filetransfer sqlstore: cleanup retention must be positive")
)
