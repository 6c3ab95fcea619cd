package filetransfer

import "time"

// Metrics captures daemon cycle telemetry.
type Metrics interface {
	// ObserveCycleDuration records the wall time of a completed or aborted cycle.
	ObserveCycleDuration(duration time.Duration)
	// SetSelected records how many requests the last cycle selected.
	SetSelected(count int)
	// AddSucceeded increments the count of completed transfers.
	AddSucceeded(count int)
	// AddFailed increments the count of failed transfers.
	AddFailed(count int)
	// AddRecordErrors increments the count of error records that could not be stored.
	AddRecordErrors(count int)
	// AddSkipped increments the count of cycles skipped because the lease was held elsewhere.
	AddSkipped(count int)
	// SetPending updates the current pending request count.
	SetPending(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// ObserveCycleDuration implements Metrics.
func (NopMetrics) ObserveCycleDuration(time.Duration) {}

// SetSelected implements Metrics.
func (NopMetrics) SetSelected(int) {}

// AddSucceeded implements Metrics.
func (NopMetrics) AddSucceeded(int) {}

// AddFailed implements Metrics.
func (NopMetrics) AddFailed(int) {}

// AddRecordErrors implements Metrics.
func (NopMetrics) AddRecordErrors(int) {}

// AddSkipped implements Metrics.
func (NopMetrics) AddSkipped(int) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(int) {}
