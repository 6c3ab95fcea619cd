package sqlstore

import (
	"strings"
	"testing"
)

func TestErrorSchemaColumns(t *testing.T) {
	for _, dialect := range []Dialect{MySQL, Postgres, SQLite} {
		statements, err := ErrorSchema(dialect, DefaultErrorTable)
		if err != nil {
			t.Fatalf("%s schema: %v", dialect, err)
		}
		ddl := statements[0]
		for _, column := range []string{"id_error", "id_request", "code", "error_message", "error_trace", "execution_time"} {
			if !strings.Contains(ddl, column) {
				t.Fatalf("%s schema missing column %s", dialect, column)
			}
		}
		if !strings.Contains(ddl, "error_message TEXT NULL") {
			t.Fatalf("%s schema must store an unbounded, nullable message", dialect)
		}
	}
}

func TestSchemaQualifiedIndexNames(t *testing.T) {
	statements, err := ErrorSchema(Postgres, "transfer.errors")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(statements[1], "CREATE INDEX IF NOT EXISTS errors_request_idx ON transfer.errors") {
		t.Fatalf("unexpected index statement %q", statements[1])
	}
}

func TestSchemaRejectsInvalidTable(t *testing.T) {
	if _, err := RequestSchema(MySQL, "requests;drop"); err == nil {
		t.Fatalf("expected invalid table error")
	}
	if _, err := Schema(WithErrorTable("bad name")); err == nil {
		t.Fatalf("expected invalid table error")
	}
}

func TestSchemaCreatesRequestsFirst(t *testing.T) {
	statements, err := Schema(WithDialect(SQLite))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(statements[0], DefaultRequestTable) {
		t.Fatalf("expected request table first, got %q", statements[0])
	}
}
