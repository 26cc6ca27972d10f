package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// MaxEventLogEntries bounds the number of entries kept in the ring buffer.
const MaxEventLogEntries = 500

// EventCategory classifies an event log entry for styling.
type EventCategory int

const (
	EventInfo EventCategory = iota
	EventSuccess
	EventWarning
	EventError
)

// EventEntry is a single line of the event log.
type EventEntry struct {
	Timestamp time.Time
	Category  EventCategory
	Message   string
}

// EventLogModel is a scrollable log of run transitions. New entries keep the
// view pinned to the bottom unless the user scrolled up.
type EventLogModel struct {
	theme      Theme
	viewport   viewport.Model
	entries    []EventEntry
	width      int
	height     int
	visible    bool
	autoScroll bool
}

// NewEventLogModel creates a visible event log.
func NewEventLogModel(theme Theme) EventLogModel {
	return EventLogModel{
		theme:      theme,
		viewport:   viewport.New(0, 0),
		visible:    true,
		autoScroll: true,
	}
}

// SetDimensions resizes the log. The height includes the header line.
func (m *EventLogModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 0)
	m.refresh()
}

// SetVisible shows or hides the log.
func (m *EventLogModel) SetVisible(v bool) { m.visible = v }

// IsVisible reports whether the log is shown.
func (m EventLogModel) IsVisible() bool { return m.visible }

// Entries returns the buffered entries, oldest first.
func (m EventLogModel) Entries() []EventEntry { return m.entries }

// AddEntry appends an entry, dropping the oldest when the buffer is full.
func (m *EventLogModel) AddEntry(at time.Time, cat EventCategory, msg string) {
	m.entries = append(m.entries, EventEntry{Timestamp: at, Category: cat, Message: msg})
	if len(m.entries) > MaxEventLogEntries {
		m.entries = m.entries[len(m.entries)-MaxEventLogEntries:]
	}
	m.refresh()
}

// AddEvent records a hub event. Pending step transitions are not logged.
func (m *EventLogModel) AddEvent(ev workflow.Event) {
	cat, msg, ok := describeEvent(ev)
	if !ok {
		return
	}
	m.AddEntry(ev.Timestamp, cat, msg)
}

// Update handles scrolling keys.
func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || !m.visible {
		return m, nil
	}
	switch keyMsg.String() {
	case "pgup":
		m.viewport.PageUp()
		m.autoScroll = false
	case "pgdown":
		m.viewport.PageDown()
		m.autoScroll = m.viewport.AtBottom()
	case "home":
		m.viewport.GotoTop()
		m.autoScroll = false
	case "end":
		m.viewport.GotoBottom()
		m.autoScroll = true
	}
	return m, nil
}

// View renders the header and visible entries.
func (m EventLogModel) View() string {
	if !m.visible || m.height < 3 {
		return ""
	}
	header := m.theme.EventHeader.Render(fmt.Sprintf("Events (%d)", len(m.entries)))
	return m.theme.EventContainer.Width(m.width).Render(header + "\n" + m.viewport.View())
}

func (m *EventLogModel) refresh() {
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = m.formatEntry(e)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.autoScroll {
		m.viewport.GotoBottom()
	}
}

func (m EventLogModel) formatEntry(e EventEntry) string {
	ts := m.theme.EventTimestamp.Render(e.Timestamp.Format("15:04:05"))
	style := m.theme.EventMessage
	switch e.Category {
	case EventSuccess:
		style = m.theme.StatusSucceeded
	case EventWarning:
		style = m.theme.StatusRunning.Foreground(ColorWarning)
	case EventError:
		style = m.theme.StatusFailed
	}
	return ts + " " + style.Render(e.Message)
}

func describeEvent(ev workflow.Event) (EventCategory, string, bool) {
	subject := ev.TargetID + " " + string(ev.Kind)
	if ev.Terminal {
		if ev.Status == workflow.RunSucceeded {
			return EventSuccess, subject + " succeeded", true
		}
		msg := subject + " failed"
		if ev.Detail != "" {
			msg += ": " + ev.Detail
		}
		return EventError, msg, true
	}
	step := fmt.Sprintf("%s step %d %q", subject, ev.StepIndex+1, ev.StepLabel)
	switch ev.StepStatus {
	case workflow.StepRunning:
		return EventInfo, step + " started", true
	case workflow.StepSucceeded:
		return EventSuccess, step + " done", true
	case workflow.StepFailed:
		cat := EventError
		if ev.Detail == workflow.CancelledDetail {
			cat = EventWarning
		}
		return cat, step + " failed: " + ev.Detail, true
	case workflow.StepSkipped:
		return EventWarning, step + " skipped", true
	}
	return EventInfo, "", false
}
