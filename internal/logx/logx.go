// Package logx adapts zerolog to the filetransfer.Logger hook.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/velmie/filetransfer"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects level, format and sinks.
type Config struct {
	Level string `yaml:"level"`
	// Format is "console" (default) or "json".
	Format string `yaml:"format"`
	// File, when set, receives JSON lines in addition to the primary sink.
	File string `yaml:"file"`
}

// Logger implements filetransfer.Logger. Args are alternating key/value pairs.
type Logger struct {
	zl zerolog.Logger
}

var _ filetransfer.Logger = Logger{}

// New builds a logger writing to out. The returned closer releases the log file, if any.
func New(cfg Config, out io.Writer) (Logger, io.Closer, error) {
	zerolog.ErrorFieldName = "err"
	if out == nil {
		out = os.Stderr
	}

	primary := out
	if !strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}
	writers := []io.Writer{primary}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Logger{}, nil, fmt.Errorf("logx: create log dir failed: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return Logger{}, nil, fmt.Errorf("logx: open log file %q failed: %w", path, err)
		}
		writers = append(writers, zerolog.SyncWriter(f))
		closer = f
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().Timestamp().Logger()

	return Logger{zl: zl}, closer, nil
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) Logger {
	return Logger{zl: zl}
}

// Nop returns a logger that never writes.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

// With returns a logger carrying the given key/value pairs on every entry.
func (l Logger) With(args ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(args); i += 2 {
		key, val := pair(args, i)
		ctx = ctx.Interface(key, val)
	}

	return Logger{zl: ctx.Logger()}
}

// Zerolog exposes the underlying logger.
func (l Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debug implements filetransfer.Logger.
func (l Logger) Debug(msg string, args ...any) { l.log(zerolog.DebugLevel, msg, args) }

// Info implements filetransfer.Logger.
func (l Logger) Info(msg string, args ...any) { l.log(zerolog.InfoLevel, msg, args) }

// Warn implements filetransfer.Logger.
func (l Logger) Warn(msg string, args ...any) { l.log(zerolog.WarnLevel, msg, args) }

// Error implements filetransfer.Logger.
func (l Logger) Error(msg string, args ...any) { l.log(zerolog.ErrorLevel, msg, args) }

func (l Logger) log(level zerolog.Level, msg string, args []any) {
	e := l.zl.WithLevel(level)
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, val := pair(args, i)
		switch v := val.(type) {
		case error:
			e.AnErr(key, v)
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case int64:
			e.Int64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		case time.Time:
			e.Time(key, v)
		default:
			e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

// pair reads the key/value at i. A non-string key is rendered with fmt; a
// trailing key without a value gets nil.
func pair(args []any, i int) (string, any) {
	key, ok := args[i].(string)
	if !ok {
		key = fmt.Sprint(args[i])
	}
	if i+1 >= len(args) {
		return key, nil
	}

	return key, args[i+1]
}

// ParseLevel maps a level name to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
