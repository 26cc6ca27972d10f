package tui

import (
	"time"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// RunRow is the view's copy of one run. It starts from an engine snapshot
// and is kept current by applying hub events in order.
type RunRow struct {
	Run workflow.Run
}

// NewRunRow builds a row from an engine snapshot.
func NewRunRow(run workflow.Run) RunRow {
	return RunRow{Run: run.Clone()}
}

// Apply folds ev into the row. Events for other runs and out-of-range step
// indexes are ignored.
func (r *RunRow) Apply(ev workflow.Event) {
	if ev.RunID != r.Run.ID {
		return
	}
	r.Run.Status = ev.Status
	if ev.Terminal {
		at := ev.Timestamp
		r.Run.CompletedAt = &at
		return
	}
	if ev.StepIndex < 0 || ev.StepIndex >= len(r.Run.Steps) {
		return
	}
	step := &r.Run.Steps[ev.StepIndex]
	step.Status = ev.StepStatus
	at := ev.Timestamp
	switch ev.StepStatus {
	case workflow.StepRunning:
		step.StartedAt = &at
	case workflow.StepFailed:
		step.FinishedAt = &at
		step.ErrorDetail = ev.Detail
	case workflow.StepSucceeded, workflow.StepSkipped:
		step.FinishedAt = &at
	}
}

// Done reports whether the run has concluded.
func (r RunRow) Done() bool { return r.Run.Status.Terminal() }

// Fraction returns the share of steps that reached a terminal status.
func (r RunRow) Fraction() float64 {
	done, total := r.Run.Progress()
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// Activity returns the label to show next to the progress bar: the running
// step, the failure detail, or the outcome.
func (r RunRow) Activity() string {
	if i := r.Run.CurrentStep(); i >= 0 {
		s := r.Run.Steps[i]
		if s.Description != "" {
			return s.Label + ": " + s.Description
		}
		return s.Label
	}
	if s, ok := r.Run.FailedStep(); ok {
		return s.Label + " failed"
	}
	if r.Done() {
		return "completed"
	}
	return "waiting"
}

// Elapsed returns the run duration measured against now.
func (r RunRow) Elapsed(now time.Time) time.Duration {
	return r.Run.Duration(now).Round(100 * time.Millisecond)
}
