package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// EventCmd returns a tea.Cmd that reads a single event from ch. It yields
// StreamClosedMsg when the channel is closed or ctx is done.
//
// Call it again after every RunEventMsg to keep draining the channel:
//
//	case RunEventMsg:
//	    // handle...
//	    return a, EventCmd(ctx, ch)
func EventCmd(ctx context.Context, ch <-chan workflow.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return StreamClosedMsg{}
		case ev, ok := <-ch:
			if !ok {
				return StreamClosedMsg{}
			}
			return RunEventMsg{Event: ev}
		}
	}
}

// CancelCmd returns a tea.Cmd that cancels run id through c.
func CancelCmd(c Canceller, id string) tea.Cmd {
	return func() tea.Msg {
		_, err := c.Cancel(id)
		return CancelResultMsg{RunID: id, Err: err}
	}
}
