package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/buildinfo"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/tui"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// eventBuffer sizes the hub channel used by the progress printer and the TUI.
const eventBuffer = 256

// runOptions are the flags shared by remediate, verify, and suppress.
type runOptions struct {
	tui         bool
	cancelAfter time.Duration
	metadata    map[string]string
}

// addRunFlags registers --tui and --cancel-after on cmd.
func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show an interactive progress view")
	cmd.Flags().DurationVar(&opts.cancelAfter, "cancel-after", 0, "Cancel the runs after this delay (0 = never)")
}

type startResult struct {
	target string
	id     string
	err    error
}

// executeRuns starts one run of kind per target resolved from args, reports
// progress until every run concludes, and prints a summary. It returns an
// error when any run failed to start or finished failed.
func executeRuns(cmd *cobra.Command, kind workflow.Kind, args []string, opts runOptions) error {
	resolved, err := loadValidConfig(cmd, nil)
	if err != nil {
		return err
	}
	rt := newRuntime(resolved.Config)
	defer rt.Close()

	targets, err := finding.ResolveTargets(rt.findings, kind, args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Subscribe before starting so the first step events are not missed. The
	// channel outlives ctx so cancellations triggered by ctx still reach it.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	events := rt.engine.Hub().Channel(watchCtx, eventBuffer)

	p := newProgressPrinter(cmd.OutOrStdout(), flagQuiet)

	var (
		runs      = make(map[string]workflow.Run)
		snapshots []workflow.Run
		ids       []string
		startErrs []error
	)
	for _, res := range startAll(ctx, rt, kind, targets, opts.metadata) {
		if res.err != nil {
			p.startFailed(res.target, kind, res.err)
			startErrs = append(startErrs, fmt.Errorf("%s: %w", res.target, res.err))
			continue
		}
		run, err := rt.engine.GetRun(res.id)
		if err != nil {
			startErrs = append(startErrs, err)
			continue
		}
		runs[run.ID] = run
		snapshots = append(snapshots, run)
		ids = append(ids, run.ID)
	}
	if len(ids) == 0 {
		return errors.Join(startErrs...)
	}
	rt.logger.Debug("runs started", "kind", kind, "count", len(ids))

	cancelAll := func() {
		for _, id := range ids {
			if _, err := rt.engine.Cancel(id); err != nil {
				rt.logger.Warn("cancel failed", "run", id, "error", err)
			}
		}
	}
	if opts.cancelAfter > 0 {
		timer := time.AfterFunc(opts.cancelAfter, cancelAll)
		defer timer.Stop()
	}

	if opts.tui {
		err := tui.Run(ctx, tui.AppConfig{
			Version:      buildinfo.Version,
			Runs:         snapshots,
			Events:       events,
			Canceller:    rt.engine,
			ExitWhenDone: true,
		}, cmd.OutOrStdout())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	} else {
		watch(ctx, p, events, runs, cancelAll)
	}

	// The view may exit before the runs conclude (quit key, interrupt).
	cancelAll()
	finals := awaitAll(rt.engine, ids)
	p.summary(finals)
	return runsError(finals, startErrs)
}

// startAll starts every target concurrently, retrying on capacity errors.
// Results keep the order of targets.
func startAll(ctx context.Context, rt *runtime, kind workflow.Kind, targets []string, md map[string]string) []startResult {
	results := make([]startResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			id, err := workflow.StartWithRetry(gctx, rt.engine, target, kind, rt.cfg.RetryPolicy(), workflow.WithMetadata(md))
			results[i] = startResult{target: target, id: id, err: err}
			// Per-target errors are reported, never propagated, so one
			// rejected target does not abort the others.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// watch prints events for runs until each has published its terminal event.
// When ctx is done every run is cancelled and watching continues until they
// conclude.
func watch(ctx context.Context, p *progressPrinter, events <-chan workflow.Event, runs map[string]workflow.Run, cancel func()) {
	remaining := len(runs)
	done := ctx.Done()
	for remaining > 0 {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			run, mine := runs[ev.RunID]
			if !mine {
				continue
			}
			p.event(run, ev)
			if ev.Terminal {
				remaining--
			}
		case <-done:
			cancel()
			done = nil
		}
	}
}

// awaitAll collects the final snapshot of every run concurrently.
func awaitAll(engine *workflow.Engine, ids []string) []workflow.Run {
	finals := make([]workflow.Run, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			run, err := engine.Await(context.Background(), id)
			finals[i] = run
			return err
		})
	}
	_ = g.Wait()
	return finals
}

func runsError(finals []workflow.Run, startErrs []error) error {
	failed := 0
	for _, r := range finals {
		if r.Status != workflow.RunSucceeded {
			failed++
		}
	}
	errs := startErrs
	if failed > 0 {
		errs = append(errs, fmt.Errorf("%d of %d run(s) failed", failed, len(finals)))
	}
	return errors.Join(errs...)
}
