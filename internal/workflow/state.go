package workflow

import (
	"maps"
	"time"
)

// StepState is the runtime state of one step within a run.
type StepState struct {
	Index       int        `json:"index"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// Run is a single execution of a workflow kind against a target. Values
// returned by the engine are snapshots; mutating them has no effect on the
// engine's copy.
type Run struct {
	ID          string            `json:"id"`
	TargetID    string            `json:"target_id"`
	Kind        Kind              `json:"kind"`
	Status      RunStatus         `json:"status"`
	Steps       []StepState       `json:"steps"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// newRun creates a run with every step pending.
func newRun(id, targetID string, kind Kind, defs []StepDefinition, metadata map[string]string, now time.Time) *Run {
	steps := make([]StepState, len(defs))
	for i, d := range defs {
		steps[i] = StepState{
			Index:       i,
			Label:       d.Label,
			Description: d.Description,
			Status:      StepPending,
		}
	}
	return &Run{
		ID:        id,
		TargetID:  targetID,
		Kind:      kind,
		Status:    RunPending,
		Steps:     steps,
		Metadata:  maps.Clone(metadata),
		CreatedAt: now,
	}
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() Run {
	c := *r
	c.Steps = make([]StepState, len(r.Steps))
	for i, s := range r.Steps {
		s.StartedAt = cloneTime(s.StartedAt)
		s.FinishedAt = cloneTime(s.FinishedAt)
		c.Steps[i] = s
	}
	c.Metadata = maps.Clone(r.Metadata)
	c.CompletedAt = cloneTime(r.CompletedAt)
	return c
}

// CurrentStep returns the index of the running step, or -1 when no step is
// running.
func (r *Run) CurrentStep() int {
	for i := range r.Steps {
		if r.Steps[i].Status == StepRunning {
			return i
		}
	}
	return -1
}

// FailedStep returns the failed step, if any.
func (r *Run) FailedStep() (StepState, bool) {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return s, true
		}
	}
	return StepState{}, false
}

// Progress returns the number of steps that have reached a terminal status
// and the total number of steps.
func (r *Run) Progress() (done, total int) {
	for _, s := range r.Steps {
		if s.Status.Terminal() {
			done++
		}
	}
	return done, len(r.Steps)
}

// Duration returns the elapsed time between creation and completion. For an
// active run it is measured against now.
func (r *Run) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.CreatedAt)
	}
	return now.Sub(r.CreatedAt)
}

// startStep marks step i running and the run running.
func (r *Run) startStep(i int, now time.Time) {
	s := &r.Steps[i]
	s.Status = StepRunning
	s.StartedAt = timePtr(now)
	r.Status = RunRunning
}

// succeedStep marks step i succeeded.
func (r *Run) succeedStep(i int, now time.Time) {
	s := &r.Steps[i]
	s.Status = StepSucceeded
	s.FinishedAt = timePtr(now)
}

// failFrom marks step i failed with detail and every later step skipped, and
// concludes the run as failed. It returns the indices of the skipped steps.
func (r *Run) failFrom(i int, detail string, now time.Time) []int {
	s := &r.Steps[i]
	s.Status = StepFailed
	s.ErrorDetail = detail
	if s.StartedAt == nil {
		s.StartedAt = timePtr(now)
	}
	s.FinishedAt = timePtr(now)

	var skipped []int
	for j := i + 1; j < len(r.Steps); j++ {
		r.Steps[j].Status = StepSkipped
		skipped = append(skipped, j)
	}
	r.conclude(RunFailed, now)
	return skipped
}

// conclude sets the terminal status.
func (r *Run) conclude(status RunStatus, now time.Time) {
	r.Status = status
	r.CompletedAt = timePtr(now)
}

func timePtr(t time.Time) *time.Time { return &t }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}
