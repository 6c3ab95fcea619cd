package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir    string
	config string
	oldDir string
	newDir string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:    dir,
		config: filepath.Join(dir, "filetransfer.yaml"),
		oldDir: filepath.Join(dir, "old"),
		newDir: filepath.Join(dir, "new"),
	}
	body := fmt.Sprintf(`
upload_limit: 10
database:
  driver: sqlite
  dsn: %s
backends:
  - name: old
    type: local
    root: %s
  - name: new
    type: local
    root: %s
delete_source: true
log:
  level: warn
`, filepath.Join(dir, "ft.db"), env.oldDir, env.newDir)
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0o600))

	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := e.runWithLogs(t, args...)

	return out, err
}

func (e testEnv) runWithLogs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", e.config}, args...))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())

	return out.String(), errOut.String(), err
}

func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "filetransfer %s", strings.Join(args, " "))

	return out
}

func TestSchemaPrintsDDL(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "schema")
	require.Contains(t, out, "CREATE TABLE IF NOT EXISTS filestoragetransfer_request")
	require.Contains(t, out, "CREATE TABLE IF NOT EXISTS filestoragetransfer_error")

	out = env.mustRun(t, "schema", "--db-driver", "postgres", "--db-dsn", "postgres://localhost/ft")
	require.Contains(t, out, "BIGSERIAL")
}

func TestTransferCycleEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "schema", "--apply")

	require.NoError(t, os.MkdirAll(env.oldDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.oldDir, "a.txt"), []byte("hello"), 0o600))

	out := env.mustRun(t, "enqueue", "--from", "old", "--to", "new", "a.txt", "missing.txt")
	require.Equal(t, "1\ta.txt\n2\tmissing.txt\n", out)

	out = env.mustRun(t, "once")
	require.Contains(t, out, "Request 1: DONE.\nRequest 2: FAILED -> source file not found\n")
	require.Contains(t, out, "selected=2 succeeded=1 failed=1 record_errors=0")

	data, err := os.ReadFile(filepath.Join(env.newDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	_, err = os.Stat(filepath.Join(env.oldDir, "a.txt"))
	require.True(t, os.IsNotExist(err), "source is deleted after a successful transfer")

	out = env.mustRun(t, "errors", "list")
	require.Contains(t, out, "request=2\tcode=11")

	out = env.mustRun(t, "errors", "show", "1")
	require.Contains(t, out, `"RequestID": 2`)

	// The failed request stays pending and is attempted again.
	out = env.mustRun(t, "once")
	require.Equal(t, "Request 2: FAILED -> source file not found\nselected=1 succeeded=0 failed=1 record_errors=0\n", out)

	out = env.mustRun(t, "errors", "list", "--request", "2")
	require.Equal(t, 2, strings.Count(out, "request=2"))

	out = env.mustRun(t, "errors", "refs")
	require.Equal(t, "1\t2\tsource file not found\n2\t2\tsource file not found\n", out)

	out = env.mustRun(t, "errors", "delete", "2")
	require.Equal(t, "deleted 1 record(s)\n", out)

	out = env.mustRun(t, "cleanup", "--once", "--retention", "1ns")
	require.Equal(t, "deleted 1 error record(s)\n", out)

	out = env.mustRun(t, "errors", "list")
	require.Equal(t, "No error records found.\n", out)
}

func TestOnceLogsEachFailureOnce(t *testing.T) {
	env := newTestEnv(t)
	body, err := os.ReadFile(env.config)
	require.NoError(t, err)
	body = []byte(strings.Replace(string(body), "  level: warn\n", "  level: warn\n  format: json\n", 1))
	require.NoError(t, os.WriteFile(env.config, body, 0o600))

	env.mustRun(t, "schema", "--apply")
	env.mustRun(t, "enqueue", "--from", "old", "--to", "new", "missing.txt")

	_, logs, err := env.runWithLogs(t, "once")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(logs, "transfer failed"), logs)
}

func TestErrorsShowMissing(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "schema", "--apply")

	_, err := env.run(t, "errors", "show", "42")
	require.ErrorContains(t, err, "not found")

	_, err = env.run(t, "errors", "show", "x")
	require.ErrorContains(t, err, "invalid id")
}

func TestEnqueueValidates(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "schema", "--apply")

	_, err := env.run(t, "enqueue", "--from", "old", "--to", "old", "a.txt")
	require.Error(t, err)

	_, err = env.run(t, "enqueue", "a.txt")
	require.ErrorContains(t, err, "required flag")
}

func TestRunRejectsBadSchedule(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FILETRANSFER_SCHEDULE", "every now and then")

	_, err := env.run(t, "run")
	require.ErrorContains(t, err, "schedule")
}

func TestConfigErrorsSurface(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "once", "--db-driver", "oracle")
	require.ErrorContains(t, err, "database.driver")
}

func TestRequestsCommands(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "schema", "--apply")
	env.mustRun(t, "enqueue", "--from", "old", "--to", "new", "a.txt", "b.txt", "c.txt")

	require.Equal(t, "3\n", env.mustRun(t, "requests", "pending"))

	env.mustRun(t, "requests", "cancel", "1")
	env.mustRun(t, "requests", "reschedule", "2", "--in", "24h")
	require.Equal(t, "2\n", env.mustRun(t, "requests", "pending"))

	out := env.mustRun(t, "requests", "show", "1")
	require.Contains(t, out, "a.txt\told -> new\tcanceled")

	// Only c.txt is due; it fails because the file does not exist.
	out = env.mustRun(t, "once")
	require.Equal(t, "Request 3: FAILED -> source file not found\nselected=1 succeeded=0 failed=1 record_errors=0\n", out)

	_, err := env.run(t, "requests", "show", "99")
	require.ErrorContains(t, err, "not found")
}
