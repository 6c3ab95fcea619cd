package filetransfer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// FailureHandler is called for every failed transfer before it is recorded.
type FailureHandler func(ctx context.Context, req Request, err error)

// Limiter paces transfers. *rate.Limiter satisfies it.
type Limiter interface {
	// Wait blocks until the next transfer may start or ctx is done.
	Wait(ctx context.Context) error
}

// DaemonConfig defines how the Daemon runs a cycle.
type DaemonConfig struct {
	// BatchSize caps the requests processed per cycle. Values <= 0 mean no cap.
	BatchSize int
	// BatchSizeFunc, when set, is called exactly once by NewDaemon and overrides BatchSize.
	BatchSizeFunc     func() int
	Clock             Clock
	ErrorHandler      FailureHandler
	Logger            Logger
	Metrics           Metrics
	FailureClassifier FailureClassifier
	TransferTimeout   time.Duration
	Locker            Locker
	RunLog            *RunLog
	Limiter           Limiter
	RunIDs            func() string
}

func (c DaemonConfig) withDefaults() DaemonConfig {
	if c.BatchSizeFunc != nil {
		c.BatchSize = c.BatchSizeFunc()
		c.BatchSizeFunc = nil
	}
	if c.BatchSize < 0 {
		c.BatchSize = 0
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.FailureClassifier == nil {
		c.FailureClassifier = DefaultClassifier
	}
	if c.RunLog == nil {
		c.RunLog = NewRunLog()
	}
	if c.RunIDs == nil {
		c.RunIDs = newRunID
	}

	return c
}

// DaemonOption configures Daemon behavior.
type DaemonOption func(*DaemonConfig)

// WithBatchSize sets the maximum number of requests processed per cycle.
// Zero or a negative value disables the cap; this is also the default.
func WithBatchSize(size int) DaemonOption {
	return func(c *DaemonConfig) {
		c.BatchSize = size
	}
}

// WithBatchSizeFunc reads the batch size from fn once, when the daemon is constructed.
func WithBatchSizeFunc(fn func() int) DaemonOption {
	return func(c *DaemonConfig) {
		c.BatchSizeFunc = fn
	}
}

// WithClock sets the daemon clock used by Tick and for run-log timestamps.
func WithClock(clock Clock) DaemonOption {
	return func(c *DaemonConfig) {
		c.Clock = clock
	}
}

// WithErrorHandler registers a callback for transfer failures.
func WithErrorHandler(handler FailureHandler) DaemonOption {
	return func(c *DaemonConfig) {
		c.ErrorHandler = handler
	}
}

// WithLogger sets the daemon logger.
func WithLogger(logger Logger) DaemonOption {
	return func(c *DaemonConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets the daemon metrics recorder.
func WithMetrics(metrics Metrics) DaemonOption {
	return func(c *DaemonConfig) {
		c.Metrics = metrics
	}
}

// WithFailureClassifier sets how transfer errors become error records.
func WithFailureClassifier(classifier FailureClassifier) DaemonOption {
	return func(c *DaemonConfig) {
		c.FailureClassifier = classifier
	}
}

// WithTransferTimeout bounds each transfer call.
func WithTransferTimeout(timeout time.Duration) DaemonOption {
	return func(c *DaemonConfig) {
		c.TransferTimeout = timeout
	}
}

// WithLocker wraps every cycle in a lease. A cycle whose lease is held elsewhere is skipped.
func WithLocker(locker Locker) DaemonOption {
	return func(c *DaemonConfig) {
		c.Locker = locker
	}
}

// WithRunLog sets the run-log the daemon writes to.
func WithRunLog(log *RunLog) DaemonOption {
	return func(c *DaemonConfig) {
		c.RunLog = log
	}
}

// WithLimiter paces transfers with limiter.
func WithLimiter(limiter Limiter) DaemonOption {
	return func(c *DaemonConfig) {
		c.Limiter = limiter
	}
}

// WithTransferRate allows at most perSecond transfers per second with the given burst.
// A non-positive rate leaves transfers unpaced.
func WithTransferRate(perSecond float64, burst int) DaemonOption {
	return func(c *DaemonConfig) {
		if perSecond <= 0 {
			c.Limiter = nil

			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRunIDGenerator overrides how cycle identifiers are produced.
func WithRunIDGenerator(fn func() string) DaemonOption {
	return func(c *DaemonConfig) {
		c.RunIDs = fn
	}
}
