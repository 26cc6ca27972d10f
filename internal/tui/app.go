package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

const (
	// minTerminalWidth and minTerminalHeight are the smallest dimensions the
	// progress view renders in.
	minTerminalWidth  = 60
	minTerminalHeight = 12

	progressBarWidth = 24
	targetColumn     = 10
	kindColumn       = 12
)

// Canceller cancels a run by ID. *workflow.Engine satisfies it.
type Canceller interface {
	Cancel(id string) (workflow.Run, error)
}

// AppConfig holds the inputs of the run progress view.
type AppConfig struct {
	// Version is shown in the title bar.
	Version string

	// Runs are the engine snapshots taken right after the runs started.
	Runs []workflow.Run

	// Events is a hub channel subscribed before the runs started.
	Events <-chan workflow.Event

	// Canceller handles the cancel keys. Nil disables them.
	Canceller Canceller

	// ExitWhenDone quits the program once every run concluded.
	ExitWhenDone bool

	// Now overrides the clock used for elapsed times.
	Now func() time.Time
}

// App is the top-level Bubble Tea model for watching runs progress.
type App struct {
	ctx      context.Context
	cfg      AppConfig
	theme    Theme
	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	bar      progress.Model
	log      EventLogModel
	rows     []RunRow
	index    map[string]int
	selected int
	width    int
	height   int
	ready    bool
	quitting bool
}

// NewApp creates the progress view for cfg.Runs.
func NewApp(ctx context.Context, cfg AppConfig) App {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	theme := DefaultTheme()
	a := App{
		ctx:   ctx,
		cfg:   cfg,
		theme: theme,
		keys:  DefaultKeyMap(),
		help:  help.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(theme.StatusRunning),
		),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(progressBarWidth),
			progress.WithoutPercentage(),
		),
		log:   NewEventLogModel(theme),
		index: make(map[string]int, len(cfg.Runs)),
	}
	for _, r := range cfg.Runs {
		a.index[r.ID] = len(a.rows)
		a.rows = append(a.rows, NewRunRow(r))
	}
	return a
}

// Init starts the spinner and the event pump.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, EventCmd(a.ctx, a.cfg.Events))
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.help.Width = msg.Width
		a.log.SetDimensions(msg.Width, a.logHeight())
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case RunEventMsg:
		a.applyEvent(msg.Event)
		cmds := []tea.Cmd{EventCmd(a.ctx, a.cfg.Events)}
		if a.cfg.ExitWhenDone && a.AllDone() {
			a.quitting = true
			cmds = append(cmds, tea.Quit)
		}
		return a, tea.Batch(cmds...)

	case StreamClosedMsg:
		if a.cfg.ExitWhenDone {
			a.quitting = true
			return a, tea.Quit
		}
		return a, nil

	case CancelResultMsg:
		if msg.Err != nil {
			a.log.AddEntry(a.cfg.Now(), EventError, fmt.Sprintf("cancel %s: %v", msg.RunID, msg.Err))
		} else {
			a.log.AddEntry(a.cfg.Now(), EventWarning, "cancel requested for "+msg.RunID)
		}
		return a, nil
	}
	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true
		return a, tea.Quit
	case key.Matches(msg, a.keys.Up):
		if a.selected > 0 {
			a.selected--
		}
	case key.Matches(msg, a.keys.Down):
		if a.selected < len(a.rows)-1 {
			a.selected++
		}
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		a.log.SetDimensions(a.width, a.logHeight())
	case key.Matches(msg, a.keys.ToggleLog):
		a.log.SetVisible(!a.log.IsVisible())
	case key.Matches(msg, a.keys.Cancel):
		if a.cfg.Canceller == nil || a.selected >= len(a.rows) {
			return a, nil
		}
		row := a.rows[a.selected]
		if row.Done() {
			return a, nil
		}
		return a, CancelCmd(a.cfg.Canceller, row.Run.ID)
	case key.Matches(msg, a.keys.CancelAll):
		if a.cfg.Canceller == nil {
			return a, nil
		}
		var cmds []tea.Cmd
		for _, row := range a.rows {
			if !row.Done() {
				cmds = append(cmds, CancelCmd(a.cfg.Canceller, row.Run.ID))
			}
		}
		return a, tea.Batch(cmds...)
	default:
		var cmd tea.Cmd
		a.log, cmd = a.log.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) applyEvent(ev workflow.Event) {
	i, ok := a.index[ev.RunID]
	if !ok {
		return
	}
	a.rows[i].Apply(ev)
	a.log.AddEvent(ev)
}

// AllDone reports whether every watched run concluded.
func (a App) AllDone() bool {
	for _, r := range a.rows {
		if !r.Done() {
			return false
		}
	}
	return true
}

// Rows returns the current run rows.
func (a App) Rows() []RunRow { return a.rows }

// Selected returns the index of the highlighted row.
func (a App) Selected() int { return a.selected }

// View implements tea.Model.
func (a App) View() string {
	if a.quitting {
		return ""
	}
	if !a.ready {
		return "Initializing..."
	}
	if a.width < minTerminalWidth || a.height < minTerminalHeight {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: %dx%d.",
			a.width, a.height, minTerminalWidth, minTerminalHeight)
	}

	sections := []string{a.renderTitle(), a.renderRows()}
	if lv := a.log.View(); lv != "" {
		sections = append(sections, lv)
	}
	sections = append(sections, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a App) renderTitle() string {
	done := 0
	for _, r := range a.rows {
		if r.Done() {
			done++
		}
	}
	title := "Sentinel"
	if a.cfg.Version != "" {
		title += " v" + a.cfg.Version
	}
	hint := a.theme.TitleHint.Render(fmt.Sprintf("%d/%d runs complete", done, len(a.rows)))
	return a.theme.TitleBar.Width(a.width).Render(title + "  " + hint)
}

func (a App) renderRows() string {
	now := a.cfg.Now()
	var b strings.Builder
	for i, row := range a.rows {
		cursor := "  "
		if i == a.selected {
			cursor = a.theme.RowSelected.Render("> ")
		}
		done, total := row.Run.Progress()
		fmt.Fprintf(&b, "%s%s %s %s %s %s %s %s\n",
			cursor,
			a.runIndicator(row),
			a.theme.RowTarget.Width(targetColumn).Render(row.Run.TargetID),
			a.theme.RowKind.Width(kindColumn).Render(string(row.Run.Kind)),
			a.bar.ViewAs(row.Fraction()),
			a.theme.RowCounter.Render(fmt.Sprintf("%d/%d", done, total)),
			a.renderSteps(row),
			a.theme.RowCounter.Render(row.Elapsed(now).String()),
		)
		fmt.Fprintf(&b, "    %s\n", a.renderActivity(row))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a App) runIndicator(row RunRow) string {
	switch {
	case row.Run.Status == workflow.RunSucceeded:
		return a.theme.StepIndicator(workflow.StepSucceeded)
	case row.Run.Status == workflow.RunFailed:
		return a.theme.StepIndicator(workflow.StepFailed)
	case row.Run.Status == workflow.RunRunning:
		return a.spinner.View()
	default:
		return a.theme.StepIndicator(workflow.StepPending)
	}
}

func (a App) renderSteps(row RunRow) string {
	var b strings.Builder
	for _, s := range row.Run.Steps {
		b.WriteString(a.theme.StepIndicator(s.Status))
	}
	return b.String()
}

func (a App) renderActivity(row RunRow) string {
	if s, ok := row.Run.FailedStep(); ok {
		return a.theme.StatusFailed.Render(s.Label + ": " + s.ErrorDetail)
	}
	if row.Done() {
		return a.theme.RunStatusText(row.Run.Status)
	}
	return a.theme.RowStep.Render(row.Activity())
}

// logHeight gives the event log what is left after the title, two lines per
// run, and the help footer.
func (a App) logHeight() int {
	helpLines := 1
	if a.help.ShowAll {
		helpLines = 3
	}
	return max(a.height-1-2*len(a.rows)-helpLines, 0)
}

// Run starts the progress view on the alternate screen and blocks until it
// exits. output defaults to the program's standard output when nil.
func Run(ctx context.Context, cfg AppConfig, output io.Writer) error {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if output != nil {
		opts = append(opts, tea.WithOutput(output))
	}
	p := tea.NewProgram(NewApp(ctx, cfg), opts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running progress view: %w", err)
	}
	return nil
}
