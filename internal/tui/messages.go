package tui

import "github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"

// RunEventMsg carries one hub event into the Bubble Tea program.
type RunEventMsg struct {
	Event workflow.Event
}

// StreamClosedMsg reports that the event channel was closed or its context
// ended.
type StreamClosedMsg struct{}

// CancelResultMsg reports the outcome of a cancel request made from the UI.
type CancelResultMsg struct {
	RunID string
	Err   error
}
