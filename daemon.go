package filetransfer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// CycleSummary reports what one RunCycle call did.
type CycleSummary struct {
	RunID     string
	AsOf      time.Time
	Selected  int
	Succeeded int
	Failed    int
	// RecordErrors counts failures whose error record could not be stored.
	RecordErrors int
	// Skipped is true when the cycle lease was held by another process.
	Skipped bool
}

// Daemon runs batch cycles: it selects due requests, transfers them one at a time and
// records every failure without aborting the rest of the batch.
type Daemon struct {
	selector   RequestSelector
	transferer Transferer
	recorder   ErrorRecorder
	cfg        DaemonConfig

	// cycleMu serializes cycles started in this process.
	cycleMu sync.Mutex
}

// NewDaemon constructs a Daemon. The batch size is resolved here, once, and never
// re-read afterwards.
func NewDaemon(selector RequestSelector, transferer Transferer, recorder ErrorRecorder, opts ...DaemonOption) *Daemon {
	if selector == nil {
		panic("filetransfer: nil RequestSelector")
	}
	if transferer == nil {
		panic("filetransfer: nil Transferer")
	}
	if recorder == nil {
		panic("filetransfer: nil ErrorRecorder")
	}

	var cfg DaemonConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Daemon{
		selector:   selector,
		transferer: transferer,
		recorder:   recorder,
		cfg:        cfg,
	}
}

// BatchSize returns the resolved per-cycle cap. Zero means unbounded.
func (d *Daemon) BatchSize() int {
	return d.cfg.BatchSize
}

// RunLog returns the run-log the daemon publishes to after each cycle.
func (d *Daemon) RunLog() *RunLog {
	return d.cfg.RunLog
}

// Tick runs a cycle as of the daemon clock's current time.
func (d *Daemon) Tick(ctx context.Context) (CycleSummary, error) {
	return d.RunCycle(ctx, d.cfg.Clock.Now())
}

// RunCycle processes the requests due at asOf.
//
// Transfer failures never abort the cycle: each one is classified, stored as an
// ErrorRecord with ExecutionTime asOf and noted in the run-log. A failure to store the
// record is noted as well and processing continues. The returned error is non-nil only
// when the lease or the selection failed, or when ctx was canceled mid-cycle.
func (d *Daemon) RunCycle(ctx context.Context, asOf time.Time) (CycleSummary, error) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	summary := CycleSummary{AsOf: asOf}

	if d.cfg.Locker != nil {
		unlock, ok, err := d.cfg.Locker.TryLock(ctx)
		if err != nil {
			return summary, fmt.Errorf("filetransfer: acquire cycle lock failed: %w", err)
		}
		if !ok {
			d.cfg.Logger.Debug("filetransfer cycle lock held elsewhere, skipping", "as_of", asOf)
			d.cfg.Metrics.AddSkipped(1)
			summary.Skipped = true

			return summary, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				d.cfg.Logger.Warn("filetransfer cycle unlock failed", "err", err)
			}
		}()
	}

	start := time.Now()
	defer func() {
		d.cfg.Metrics.ObserveCycleDuration(time.Since(start))
	}()

	summary.RunID = d.cfg.RunIDs()
	runLog := d.cfg.RunLog
	runLog.Begin(summary.RunID, d.cfg.Clock.Now())

	requests, err := d.selector.SelectDue(ctx, asOf, d.cfg.BatchSize)
	if err != nil {
		runLog.Appendf("Cycle %s: selecting due requests FAILED -> %v", summary.RunID, err)
		runLog.Publish(d.cfg.Clock.Now())

		return summary, fmt.Errorf("filetransfer: select due requests failed: %w", err)
	}
	if d.cfg.BatchSize > 0 && len(requests) > d.cfg.BatchSize {
		requests = requests[:d.cfg.BatchSize]
	}
	summary.Selected = len(requests)
	d.cfg.Metrics.SetSelected(summary.Selected)

	for i := range requests {
		req := requests[i]
		if err := ctx.Err(); err != nil {
			return d.interrupt(summary, req, err)
		}
		// A limiter that cannot grant a slot before the deadline stops the cycle;
		// no transfer was attempted, so nothing is recorded.
		if d.cfg.Limiter != nil {
			if err := d.cfg.Limiter.Wait(ctx); err != nil {
				return d.interrupt(summary, req, err)
			}
		}

		if err := d.transfer(ctx, req); err != nil {
			if ctx.Err() != nil {
				return d.interrupt(summary, req, ctx.Err())
			}
			d.recordFailure(ctx, asOf, req, err, &summary)

			continue
		}
		summary.Succeeded++
		runLog.Appendf("Request %d: DONE.", req.ID)
	}

	d.finish(summary)

	return summary, nil
}

func (d *Daemon) transfer(ctx context.Context, req Request) (err error) {
	transferCtx := ctx
	cancel := func() {}
	if d.cfg.TransferTimeout > 0 {
		transferCtx, cancel = context.WithTimeout(ctx, d.cfg.TransferTimeout)
	}
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	return d.transferer.Transfer(transferCtx, req)
}

func (d *Daemon) recordFailure(ctx context.Context, asOf time.Time, req Request, err error, summary *CycleSummary) {
	if d.cfg.ErrorHandler != nil {
		d.cfg.ErrorHandler(ctx, req, err)
	}

	failure := d.cfg.FailureClassifier(ctx, req, err)
	record := ErrorRecord{
		RequestID:     req.ID,
		Code:          failure.Code,
		Message:       failure.Message,
		Trace:         failure.Trace,
		ExecutionTime: asOf,
	}
	summary.Failed++

	if recErr := d.recorder.RecordError(ctx, &record); recErr != nil {
		summary.RecordErrors++
		d.cfg.Logger.Error("filetransfer error record not saved", "request", req.ID, "code", failure.Code, "err", recErr)
		d.cfg.RunLog.Appendf("Request %d: error record not saved -> %v", req.ID, recErr)
	} else {
		d.cfg.Logger.Warn("filetransfer transfer failed", "request", req.ID, "code", failure.Code, "error_id", record.ID, "err", err)
	}
	d.cfg.RunLog.Appendf("Request %d: FAILED -> %s", req.ID, failure.Message)
}

func (d *Daemon) interrupt(summary CycleSummary, req Request, err error) (CycleSummary, error) {
	d.cfg.RunLog.Appendf("Request %d: cycle interrupted -> %v", req.ID, err)
	d.finish(summary)

	return summary, err
}

func (d *Daemon) finish(summary CycleSummary) {
	d.cfg.RunLog.Publish(d.cfg.Clock.Now())
	d.cfg.Metrics.AddSucceeded(summary.Succeeded)
	d.cfg.Metrics.AddFailed(summary.Failed)
	d.cfg.Metrics.AddRecordErrors(summary.RecordErrors)

	d.cfg.Logger.Info(
		"filetransfer cycle finished",
		"run_id", summary.RunID,
		"selected", summary.Selected,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"record_errors", summary.RecordErrors,
	)
}

// RecordPending samples the pending request count when counter is available.
func (d *Daemon) RecordPending(ctx context.Context, counter PendingCounter) {
	count, err := counter.PendingCount(ctx)
	if err != nil {
		d.cfg.Logger.Warn("filetransfer pending count failed", "err", err)

		return
	}

	d.cfg.Metrics.SetPending(count)
}
