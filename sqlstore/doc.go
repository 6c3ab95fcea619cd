// Package sqlstore keeps transfer requests and the error ledger in a SQL database.
//
// ErrorStore runs every operation on a caller supplied Querier (*sql.DB, *sql.Tx or
// *sql.Conn) and never holds a connection itself. Ledger binds it to a pool and scopes
// one connection to each call. RequestStore is the request queue the daemon selects
// from:
//   - status = pending AND execution_time <= asOf
//   - ORDER BY execution_time, id_request
//   - LIMIT only when the batch size is positive
//
// MySQL, PostgreSQL and SQLite are supported; see ErrorSchema and RequestSchema for the
// DDL, AdvisoryLocker for the cross-process cycle lease and CleanupMaintainer for
// retention of old error records.
package sqlstore
