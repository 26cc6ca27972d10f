package workflow

import (
	"context"
	"time"
)

// Kind identifies a workflow kind. The set of kinds is closed and defined at
// process start; string values are used (not iota) so they round-trip cleanly
// through JSON, TOML, and CLI flags.
type Kind string

const (
	// KindVerification verifies a cloud provider credential link.
	KindVerification Kind = "verification"

	// KindRemediation applies the automated fix for a finding.
	KindRemediation Kind = "remediation"

	// KindSuppression records a suppression decision for a finding.
	KindSuppression Kind = "suppression"
)

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// StepStatus is the lifecycle state of a single step within a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Terminal reports whether the step can no longer change.
func (s StepStatus) Terminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepSkipped
}

// RunStatus is the overall lifecycle state of a run. It is derived from the
// step statuses and stored on the run for cheap reads.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run has concluded.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Active reports whether the run still holds its target.
func (s RunStatus) Active() bool {
	return s == RunPending || s == RunRunning
}

// CancelledDetail is the ErrorDetail recorded on the step that was running
// (or about to run) when a run was cancelled.
const CancelledDetail = "cancelled"

// StepDefinition is the static description of one step of a workflow kind.
// Ordering within a kind is positional.
type StepDefinition struct {
	// Label is the human-readable step name.
	Label string `json:"label" toml:"label"`

	// Description is the explanatory detail shown while the step executes.
	Description string `json:"description" toml:"description"`
}

// StepRequest is passed to the side-effect provider for each step the engine
// executes.
type StepRequest struct {
	RunID    string
	TargetID string
	Kind     Kind
	Index    int
	Step     StepDefinition

	// Metadata holds the caller-supplied run inputs (for example the
	// suppression reason). It is a copy; providers may not mutate the run
	// through it.
	Metadata map[string]string
}

// SideEffects performs the work behind each step. Perform must respect the
// context deadline and return nil on success or an error describing the
// failure; returning a *StepFailure lets the provider attach a stable code.
//
// The engine invokes Perform at most once per step of a run, but callers may
// re-run a whole workflow through Start, so implementations must tolerate
// being invoked again for the same target.
type SideEffects interface {
	Perform(ctx context.Context, req StepRequest) error
}

// SideEffectFunc adapts an ordinary function to the SideEffects interface.
type SideEffectFunc func(ctx context.Context, req StepRequest) error

// Perform calls f(ctx, req).
func (f SideEffectFunc) Perform(ctx context.Context, req StepRequest) error {
	return f(ctx, req)
}

// Projector applies a concluded run's outcome back onto the domain entity the
// run targeted. Apply is called exactly once per run, after the target has
// been released and before the terminal event is published. No engine lock is
// held during Apply, so it may call GetRun or Cancel for the same run.
type Projector interface {
	Apply(targetID string, kind Kind, outcome RunStatus, run Run)
}

// ProjectorFunc adapts an ordinary function to the Projector interface.
type ProjectorFunc func(targetID string, kind Kind, outcome RunStatus, run Run)

// Apply calls f.
func (f ProjectorFunc) Apply(targetID string, kind Kind, outcome RunStatus, run Run) {
	f(targetID, kind, outcome, run)
}

// Event is delivered to hub subscribers. Step events carry StepIndex and
// StepStatus; exactly one event per run has Terminal set, carrying the
// overall Status.
type Event struct {
	RunID    string `json:"run_id"`
	TargetID string `json:"target_id"`
	Kind     Kind   `json:"kind"`

	// StepIndex is the position of the step that transitioned. It is -1 on
	// the terminal event.
	StepIndex  int        `json:"step_index"`
	StepLabel  string     `json:"step_label,omitempty"`
	StepStatus StepStatus `json:"step_status,omitempty"`

	// Status is the overall run status after the transition.
	Status   RunStatus `json:"status"`
	Terminal bool      `json:"terminal"`

	// Detail holds the failure detail for failed steps and failed runs.
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
