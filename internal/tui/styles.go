package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ---------------------------------------------------------------------------
// Color Palette
// ---------------------------------------------------------------------------

// ColorPrimary is the main accent color used for titles and the selection.
var ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}

// ColorSuccess represents succeeded steps and runs.
var ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// ColorWarning represents cancellations.
var ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// ColorError represents failed steps and runs.
var ColorError = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// ColorInfo represents running steps.
var ColorInfo = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"}

// ColorMuted is a subdued foreground color for secondary text.
var ColorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// ColorBorder is the standard panel border color.
var ColorBorder = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme holds the Lipgloss styles of the run progress view. Widths are
// applied at render time.
type Theme struct {
	TitleBar  lipgloss.Style
	TitleHint lipgloss.Style

	RowTarget   lipgloss.Style
	RowKind     lipgloss.Style
	RowSelected lipgloss.Style
	RowStep     lipgloss.Style
	RowDetail   lipgloss.Style
	RowCounter  lipgloss.Style

	StatusPending   lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusSucceeded lipgloss.Style
	StatusFailed    lipgloss.Style
	StatusSkipped   lipgloss.Style

	EventContainer lipgloss.Style
	EventHeader    lipgloss.Style
	EventTimestamp lipgloss.Style
	EventMessage   lipgloss.Style
}

// DefaultTheme returns the default theme with adaptive colors.
func DefaultTheme() Theme {
	return Theme{
		TitleBar: lipgloss.NewStyle().
			Bold(true).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1),
		TitleHint: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C7C5FF", Dark: "#A8A5FF"}),

		RowTarget:   lipgloss.NewStyle().Bold(true),
		RowKind:     lipgloss.NewStyle().Foreground(ColorMuted),
		RowSelected: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
		RowStep:     lipgloss.NewStyle(),
		RowDetail:   lipgloss.NewStyle().Foreground(ColorError).PaddingLeft(4),
		RowCounter:  lipgloss.NewStyle().Foreground(ColorMuted),

		StatusPending:   lipgloss.NewStyle().Foreground(ColorMuted),
		StatusRunning:   lipgloss.NewStyle().Foreground(ColorInfo),
		StatusSucceeded: lipgloss.NewStyle().Foreground(ColorSuccess),
		StatusFailed:    lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		StatusSkipped:   lipgloss.NewStyle().Foreground(ColorMuted).Faint(true),

		EventContainer: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder),
		EventHeader:    lipgloss.NewStyle().Bold(true).Foreground(ColorMuted),
		EventTimestamp: lipgloss.NewStyle().Foreground(ColorMuted),
		EventMessage:   lipgloss.NewStyle(),
	}
}

// StepIndicator returns a one-cell symbol for a step status:
//
//	pending ○, running ●, succeeded ✓, failed ✗, skipped -
func (t Theme) StepIndicator(s workflow.StepStatus) string {
	switch s {
	case workflow.StepRunning:
		return t.StatusRunning.Render("●")
	case workflow.StepSucceeded:
		return t.StatusSucceeded.Render("✓")
	case workflow.StepFailed:
		return t.StatusFailed.Render("✗")
	case workflow.StepSkipped:
		return t.StatusSkipped.Render("-")
	default:
		return t.StatusPending.Render("○")
	}
}

// RunStatusText renders an overall run status in its color.
func (t Theme) RunStatusText(s workflow.RunStatus) string {
	switch s {
	case workflow.RunSucceeded:
		return t.StatusSucceeded.Render(string(s))
	case workflow.RunFailed:
		return t.StatusFailed.Render(string(s))
	case workflow.RunRunning:
		return t.StatusRunning.Render(string(s))
	default:
		return t.StatusPending.Render(string(s))
	}
}
