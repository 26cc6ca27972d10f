package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// makeRun builds a pending run snapshot with n labelled steps.
func makeRun(id, target string, kind workflow.Kind, n int) workflow.Run {
	steps := make([]workflow.StepState, n)
	for i := range steps {
		steps[i] = workflow.StepState{
			Index:  i,
			Label:  "Step " + string(rune('A'+i)),
			Status: workflow.StepPending,
		}
	}
	return workflow.Run{
		ID:        id,
		TargetID:  target,
		Kind:      kind,
		Status:    workflow.RunPending,
		Steps:     steps,
		CreatedAt: testEpoch,
	}
}

func stepEv(run workflow.Run, i int, status workflow.StepStatus, runStatus workflow.RunStatus) workflow.Event {
	return workflow.Event{
		RunID:      run.ID,
		TargetID:   run.TargetID,
		Kind:       run.Kind,
		StepIndex:  i,
		StepLabel:  run.Steps[i].Label,
		StepStatus: status,
		Status:     runStatus,
		Timestamp:  testEpoch.Add(time.Duration(i+1) * time.Second),
	}
}

func terminalEv(run workflow.Run, status workflow.RunStatus, detail string) workflow.Event {
	return workflow.Event{
		RunID:     run.ID,
		TargetID:  run.TargetID,
		Kind:      run.Kind,
		StepIndex: -1,
		Status:    status,
		Terminal:  true,
		Detail:    detail,
		Timestamp: testEpoch.Add(time.Minute),
	}
}

// fakeCanceller records cancel requests.
type fakeCanceller struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeCanceller) Cancel(id string) (workflow.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return workflow.Run{ID: id}, f.err
}

func (f *fakeCanceller) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

var errCancelRefused = errors.New("refused")

// newTestApp builds a sized App watching runs.
func newTestApp(t *testing.T, cfg AppConfig) App {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testEpoch.Add(5 * time.Second) }
	}
	a := NewApp(context.Background(), cfg)
	return send(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
}

// send dispatches msg and returns the updated App, discarding the command.
func send(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	app, ok := m.(App)
	require.True(t, ok, "Update must return an App")
	return app
}

// sendCmd dispatches msg and returns the updated App and command.
func sendCmd(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(msg)
	app, ok := m.(App)
	require.True(t, ok, "Update must return an App")
	return app, cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}
