package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them through errors.Is so
// callers can branch without a type assertion.
var (
	ErrAlreadyRunning   = errors.New("target already has an active run")
	ErrUnknownKind      = errors.New("unknown workflow kind")
	ErrCapacityExceeded = errors.New("maximum concurrent runs reached")
	ErrRunNotFound      = errors.New("run not found")
	ErrRunActive        = errors.New("run is still active")
	ErrEngineClosed     = errors.New("engine is closed")
	ErrEmptyTarget      = errors.New("target id is empty")
)

// AlreadyRunningError is returned by Start when the target already has a
// pending or running run. RunID identifies that run so the caller can inspect
// it instead.
type AlreadyRunningError struct {
	TargetID string
	RunID    string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("workflow: target %q already has active run %s", e.TargetID, e.RunID)
}

func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

// UnknownKindError is returned when a kind has no registered steps. It is a
// configuration error and is not worth retrying.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("workflow: unknown workflow kind %q", string(e.Kind))
}

func (e *UnknownKindError) Is(target error) bool { return target == ErrUnknownKind }

// CapacityExceededError is returned by Start when the engine already runs the
// configured maximum number of concurrent runs. Back off and retry.
type CapacityExceededError struct {
	Limit int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("workflow: capacity exceeded (limit %d concurrent runs)", e.Limit)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

// StepFailure is the typed failure a side-effect provider returns. It is
// recorded on the run (never returned from engine APIs) and surfaces in the
// failed step's ErrorDetail.
type StepFailure struct {
	// Code is a short machine-readable reason, e.g. "timeout", "denied".
	Code string

	// Detail is the human-readable explanation shown to the user.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

func (f *StepFailure) Error() string {
	msg := f.Detail
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Code == "" {
		return msg
	}
	if msg == "" {
		return f.Code
	}
	return f.Code + ": " + msg
}

func (f *StepFailure) Unwrap() error { return f.Err }

// NewStepFailure builds a StepFailure with the given code and detail.
func NewStepFailure(code, detail string) *StepFailure {
	return &StepFailure{Code: code, Detail: detail}
}
