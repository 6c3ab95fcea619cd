package sqlstore

import "fmt"

const (
	errorColumns   = "id_error, id_request, code, error_message, error_trace, execution_time"
	requestColumns = "id_request, file_key, source_service, target_service, target_key, status, execution_time, created_at"
)

type errorQueries struct {
	insert          string
	deleteByID      string
	update          string
	load            string
	listAll         string
	listAllIDs      string
	listReferences  string
	listByRequestID string
}

func newErrorQueries(d Dialect, table string) errorQueries {
	insert := fmt.Sprintf(
		"INSERT INTO %s (id_request, code, error_message, error_trace, execution_time) VALUES (?, ?, ?, ?, ?)",
		table,
	)
	if d == Postgres {
		insert += " RETURNING id_error"
	}

	return errorQueries{
		insert:     d.rebind(insert),
		deleteByID: d.rebind(fmt.Sprintf("DELETE FROM %s WHERE id_error = ?", table)),
		update: d.rebind(fmt.Sprintf(
			"UPDATE %s SET id_request = ?, code = ?, error_message = ?, error_trace = ? WHERE id_error = ?",
			table,
		)),
		load:            d.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id_error = ?", errorColumns, table)),
		listAll:         fmt.Sprintf("SELECT %s FROM %s", errorColumns, table),
		listAllIDs:      fmt.Sprintf("SELECT id_error FROM %s", table),
		listReferences:  fmt.Sprintf("SELECT id_error, id_request, error_message FROM %s ORDER BY id_error", table),
		listByRequestID: d.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id_request = ?", errorColumns, table)),
	}
}

func buildListByIDsQuery(d Dialect, table string, count int) string {
	// #nosec G201 -- table is sanitized, ids are bound.
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id_error IN (%s)", errorColumns, table, makePlaceholders(count))

	return d.rebind(query)
}

type requestQueries struct {
	insert       string
	insertWithID string
	load         string
	selectDue    string
	selectDueMax string
	markDone     string
	reschedule   string
	setStatus    string
	countPending string
}

func newRequestQueries(d Dialect, table string) requestQueries {
	insert := fmt.Sprintf(
		"INSERT INTO %s (file_key, source_service, target_service, status, execution_time, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		table,
	)
	insertWithID := fmt.Sprintf(
		"INSERT INTO %s (id_request, file_key, source_service, target_service, status, execution_time, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		table,
	)
	if d == Postgres {
		insert += " RETURNING id_request"
	}
	selectDue := fmt.Sprintf(
		"SELECT %s FROM %s WHERE status = ? AND execution_time <= ? ORDER BY execution_time ASC, id_request ASC",
		requestColumns,
		table,
	)

	return requestQueries{
		insert:       d.rebind(insert),
		insertWithID: d.rebind(insertWithID),
		load:         d.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id_request = ?", requestColumns, table)),
		selectDue:    d.rebind(selectDue),
		selectDueMax: d.rebind(selectDue + " LIMIT ?"),
		markDone: d.rebind(fmt.Sprintf(
			"UPDATE %s SET status = ?, target_key = ? WHERE id_request = ? AND status = ?",
			table,
		)),
		reschedule: d.rebind(fmt.Sprintf(
			"UPDATE %s SET execution_time = ? WHERE id_request = ? AND status = ?",
			table,
		)),
		setStatus:    d.rebind(fmt.Sprintf("UPDATE %s SET status = ? WHERE id_request = ?", table)),
		countPending: d.rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = ?", table)),
	}
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}

	buf := make([]byte, 0, count*placeholderGrowth)
	for i := 0; i < count; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}

	return string(buf)
}
