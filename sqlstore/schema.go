package sqlstore

import (
	"context"
	"fmt"
)

const mysqlErrorTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_error BIGINT NOT NULL AUTO_INCREMENT,
	id_request BIGINT NOT NULL,
	code INT NOT NULL DEFAULT 0,
	error_message TEXT NULL,
	error_trace LONGTEXT NULL,
	execution_time TIMESTAMP(6) NOT NULL,
	PRIMARY KEY (id_error),
	INDEX idx_request (id_request),
	INDEX idx_execution_time (execution_time)
)`

const mysqlRequestTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_request BIGINT NOT NULL AUTO_INCREMENT,
	file_key VARCHAR(512) NOT NULL,
	source_service VARCHAR(128) NOT NULL,
	target_service VARCHAR(128) NOT NULL,
	target_key VARCHAR(512) NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	execution_time TIMESTAMP(6) NOT NULL,
	created_at TIMESTAMP(6) NOT NULL,
	PRIMARY KEY (id_request),
	INDEX idx_status_execution (status, execution_time, id_request)
)`

const postgresErrorTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_error BIGSERIAL PRIMARY KEY,
	id_request BIGINT NOT NULL,
	code INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NULL,
	error_trace TEXT NULL,
	execution_time TIMESTAMPTZ NOT NULL
)`

const postgresRequestTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_request BIGSERIAL PRIMARY KEY,
	file_key VARCHAR(512) NOT NULL,
	source_service VARCHAR(128) NOT NULL,
	target_service VARCHAR(128) NOT NULL,
	target_key VARCHAR(512) NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	execution_time TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

// SQLite keeps timestamps as fixed-width UTC text, see sqliteTimeLayout.
const sqliteErrorTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_error INTEGER PRIMARY KEY AUTOINCREMENT,
	id_request INTEGER NOT NULL,
	code INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NULL,
	error_trace TEXT NULL,
	execution_time TEXT NOT NULL
)`

const sqliteRequestTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id_request INTEGER PRIMARY KEY AUTOINCREMENT,
	file_key TEXT NOT NULL,
	source_service TEXT NOT NULL,
	target_service TEXT NOT NULL,
	target_key TEXT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	execution_time TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// ErrorSchema returns the DDL statements for the error ledger table.
func ErrorSchema(dialect Dialect, table string) ([]string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return nil, err
	}
	base := baseTableName(name)

	switch dialect {
	case Postgres:
		return []string{
			fmt.Sprintf(postgresErrorTemplate, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_request_idx ON %s (id_request)", base, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_execution_time_idx ON %s (execution_time)", base, name),
		}, nil
	case SQLite:
		return []string{
			fmt.Sprintf(sqliteErrorTemplate, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_request_idx ON %s (id_request)", base, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_execution_time_idx ON %s (execution_time)", base, name),
		}, nil
	default:
		return []string{fmt.Sprintf(mysqlErrorTemplate, name)}, nil
	}
}

// RequestSchema returns the DDL statements for the transfer request table.
func RequestSchema(dialect Dialect, table string) ([]string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return nil, err
	}
	base := baseTableName(name)

	switch dialect {
	case Postgres:
		return []string{
			fmt.Sprintf(postgresRequestTemplate, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_due_idx ON %s (status, execution_time, id_request)", base, name),
		}, nil
	case SQLite:
		return []string{
			fmt.Sprintf(sqliteRequestTemplate, name),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_due_idx ON %s (status, execution_time, id_request)", base, name),
		}, nil
	default:
		return []string{fmt.Sprintf(mysqlRequestTemplate, name)}, nil
	}
}

// Schema returns the DDL for both tables named in opts.
func Schema(opts ...Option) ([]string, error) {
	cfg := buildConfig(opts)

	requests, err := RequestSchema(cfg.Dialect, cfg.RequestTable)
	if err != nil {
		return nil, err
	}
	errs, err := ErrorSchema(cfg.Dialect, cfg.ErrorTable)
	if err != nil {
		return nil, err
	}

	return append(requests, errs...), nil
}

// ApplySchema creates both tables if they do not exist.
func ApplySchema(ctx context.Context, exec Executor, opts ...Option) error {
	if exec == nil {
		return ErrQuerierRequired
	}

	statements, err := Schema(opts...)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("filetransfer sqlstore: apply schema failed: %w", err)
		}
	}

	return nil
}
