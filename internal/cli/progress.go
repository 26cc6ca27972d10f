package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

var (
	styleTarget  = lipgloss.NewStyle().Bold(true)
	styleKind    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true)
)

// progressPrinter writes one styled line per run transition.
type progressPrinter struct {
	out   io.Writer
	quiet bool
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{out: out, quiet: quiet}
}

func (p *progressPrinter) prefix(target string, kind workflow.Kind) string {
	return styleTarget.Render(fmt.Sprintf("%-8s", target)) + " " + styleKind.Render(fmt.Sprintf("%-12s", kind))
}

// event prints a step or terminal transition of run.
func (p *progressPrinter) event(run workflow.Run, ev workflow.Event) {
	if p.quiet {
		return
	}
	prefix := p.prefix(run.TargetID, run.Kind)
	if ev.Terminal {
		elapsed := ev.Timestamp.Sub(run.CreatedAt).Round(10 * time.Millisecond)
		if ev.Status == workflow.RunSucceeded {
			fmt.Fprintf(p.out, "%s %s in %s\n", prefix, styleSuccess.Render("succeeded"), elapsed)
			return
		}
		fmt.Fprintf(p.out, "%s %s in %s\n", prefix, styleFailed.Render("failed"), elapsed)
		return
	}

	counter := fmt.Sprintf("[%d/%d]", ev.StepIndex+1, len(run.Steps))
	switch ev.StepStatus {
	case workflow.StepRunning:
		fmt.Fprintf(p.out, "%s %s %s %s\n", prefix, counter, styleRunning.Render("●"), ev.StepLabel)
	case workflow.StepSucceeded:
		fmt.Fprintf(p.out, "%s %s %s %s\n", prefix, counter, styleSuccess.Render("✓"), ev.StepLabel)
	case workflow.StepFailed:
		fmt.Fprintf(p.out, "%s %s %s %s: %s\n", prefix, counter, styleFailed.Render("✗"), ev.StepLabel, ev.Detail)
	case workflow.StepSkipped:
		fmt.Fprintf(p.out, "%s %s %s %s\n", prefix, counter, styleSkipped.Render("-"), styleSkipped.Render(ev.StepLabel+" (skipped)"))
	}
}

// startFailed reports a target whose run was rejected.
func (p *progressPrinter) startFailed(target string, kind workflow.Kind, err error) {
	fmt.Fprintf(p.out, "%s %s %v\n", p.prefix(target, kind), styleErrorLbl.Render("not started:"), err)
}

// summary prints the final state of every run.
func (p *progressPrinter) summary(runs []workflow.Run) {
	if len(runs) == 0 {
		return
	}
	succeeded := 0
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, styleHeader.Render("Summary"))
	for _, r := range runs {
		status := styleFailed.Render(string(r.Status))
		if r.Status == workflow.RunSucceeded {
			succeeded++
			status = styleSuccess.Render(string(r.Status))
		}
		line := fmt.Sprintf("  %s %-9s %8s", p.prefix(r.TargetID, r.Kind), status, r.Duration(time.Now()).Round(10*time.Millisecond))
		if s, ok := r.FailedStep(); ok {
			line += "  " + s.Label + ": " + s.ErrorDetail
		}
		fmt.Fprintln(p.out, line)
	}
	fmt.Fprintf(p.out, "%d run(s): %d succeeded, %d failed\n", len(runs), succeeded, len(runs)-succeeded)
}
