package sqlstore

import "github.com/velmie/filetransfer"

const (
	// DefaultErrorTable is the error ledger table name.
	DefaultErrorTable = "filestoragetransfer_error"
	// DefaultRequestTable is the transfer request table name.
	DefaultRequestTable = "filestoragetransfer_request"
)

// Config defines store behavior shared by the error and request stores.
type Config struct {
	Dialect      Dialect
	ErrorTable   string
	RequestTable string
	// MaxMessageLen caps error_message in runes. Zero keeps messages whole.
	// The trace is never truncated.
	MaxMessageLen int
	Clock         filetransfer.Clock
}

func (c Config) withDefaults() Config {
	if c.ErrorTable == "" {
		c.ErrorTable = DefaultErrorTable
	}
	if c.RequestTable == "" {
		c.RequestTable = DefaultRequestTable
	}
	if c.MaxMessageLen < 0 {
		c.MaxMessageLen = 0
	}
	if c.Clock == nil {
		c.Clock = filetransfer.SystemClock{}
	}

	return c
}

// Option configures the stores.
type Option func(*Config)

// WithDialect sets the SQL dialect. MySQL is the default.
func WithDialect(dialect Dialect) Option {
	return func(c *Config) {
		c.Dialect = dialect
	}
}

// WithErrorTable sets the error ledger table name.
func WithErrorTable(name string) Option {
	return func(c *Config) {
		c.ErrorTable = name
	}
}

// WithRequestTable sets the transfer request table name.
func WithRequestTable(name string) Option {
	return func(c *Config) {
		c.RequestTable = name
	}
}

// WithMaxMessageLen truncates stored messages to n runes. n <= 0 disables truncation.
func WithMaxMessageLen(n int) Option {
	return func(c *Config) {
		c.MaxMessageLen = n
	}
}

// WithClock sets the time source used for created_at.
func WithClock(clock filetransfer.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

func buildConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg.withDefaults()
}
