package server

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Phase is a stage of a batch run.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseWriting    Phase = "writing"
	PhaseReading    Phase = "reading"
	PhasePublishing Phase = "publishing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// BatchStatus tracks the phase of a batch run for health probes.
// The process is live unless the batch failed, and ready once it is past startup.
type BatchStatus struct {
	mu      sync.RWMutex
	phase   Phase
	since   time.Time
	lastErr string
	rows    int
}

// NewBatchStatus returns a status in the starting phase.
func NewBatchStatus() *BatchStatus {
	return &BatchStatus{phase: PhaseStarting, since: time.Now()}
}

// SetPhase moves the batch to a new phase.
func (b *BatchStatus) SetPhase(p Phase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = p
	b.since = time.Now()
}

// Fail moves the batch to the failed phase and records the error.
func (b *BatchStatus) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = PhaseFailed
	b.since = time.Now()
	if err != nil {
		b.lastErr = err.Error()
	}
}

// SetRows records the number of rows processed so far.
func (b *BatchStatus) SetRows(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = n
}

// Phase returns the current phase.
func (b *BatchStatus) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// Liveness reports false only after a failure.
func (b *BatchStatus) Liveness() bool {
	return b.Phase() != PhaseFailed
}

// Readiness reports whether the batch has started working.
func (b *BatchStatus) Readiness(ctx context.Context) bool {
	switch b.Phase() {
	case PhaseStarting, PhaseFailed:
		return false
	default:
		return ctx.Err() == nil
	}
}

// GetStatus returns the phase details for the readiness response.
func (b *BatchStatus) GetStatus() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	status := map[string]string{
		"phase": string(b.phase),
		"since": b.since.UTC().Format(time.RFC3339),
	}
	if b.rows > 0 {
		status["rows"] = strconv.Itoa(b.rows)
	}
	if b.lastErr != "" {
		status["error"] = b.lastErr
	}
	return status
}
