package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ SideEffects = (*scriptEffects)(nil)
var _ SideEffects = (*gateEffects)(nil)
var _ SideEffects = SideEffectFunc(nil)
var _ Projector = ProjectorFunc(nil)
var _ Starter = (*Engine)(nil)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// scriptEffects succeeds immediately unless a failure is scripted for the
// step index. It records every request.
type scriptEffects struct {
	mu    sync.Mutex
	fail  map[int]error
	calls []StepRequest
}

func (s *scriptEffects) Perform(_ context.Context, req StepRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.fail[req.Index]
}

func (s *scriptEffects) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// gateEffects blocks every step until the test releases it.
type gateEffects struct {
	started chan StepRequest
	release chan error
}

func newGate() *gateEffects {
	return &gateEffects{
		started: make(chan StepRequest, 64),
		release: make(chan error),
	}
}

func (g *gateEffects) Perform(ctx context.Context, req StepRequest) error {
	g.started <- req
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitStarted blocks until the gate reports that step index began.
func (g *gateEffects) waitStarted(t *testing.T, index int) StepRequest {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case req := <-g.started:
			if req.Index == index {
				return req
			}
		case <-deadline:
			t.Fatalf("step %d never started", index)
		}
	}
}

// pass releases the current step with the given result.
func (g *gateEffects) pass(t *testing.T, err error) {
	t.Helper()
	select {
	case g.release <- err:
	case <-time.After(5 * time.Second):
		t.Fatal("no step waiting for release")
	}
}

// eventRecorder collects hub events and signals terminal ones.
type eventRecorder struct {
	mu       sync.Mutex
	events   []Event
	terminal chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{terminal: make(chan Event, 64)}
}

func (r *eventRecorder) record(ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Terminal {
		r.terminal <- ev
	}
	return nil
}

func (r *eventRecorder) forRun(id string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.RunID == id {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) waitTerminal(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.terminal:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal event")
		return Event{}
	}
}

// projection is one recorded Projector.Apply call.
type projection struct {
	target  string
	kind    Kind
	outcome RunStatus
}

type projectionLog struct {
	mu    sync.Mutex
	calls []projection
}

func (p *projectionLog) Apply(target string, kind Kind, outcome RunStatus, _ Run) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, projection{target, kind, outcome})
}

func (p *projectionLog) snapshot() []projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]projection(nil), p.calls...)
}

func newTestEngine(t *testing.T, effects SideEffects, opts ...EngineOption) *Engine {
	t.Helper()
	reg := NewRegistry()
	RegisterBuiltinKinds(reg, nil)
	e := NewEngine(reg, effects, opts...)
	t.Cleanup(e.Close)
	return e
}

func awaitRun(t *testing.T, e *Engine, id string) Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := e.Await(ctx, id)
	require.NoError(t, err)
	return run
}

func stepStatuses(r Run) []StepStatus {
	out := make([]StepStatus, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Status
	}
	return out
}

// ---------------------------------------------------------------------------
// Start
// ---------------------------------------------------------------------------

func TestEngine_Start_AllStepsSucceed(t *testing.T) {
	effects := &scriptEffects{}
	proj := &projectionLog{}
	e := newTestEngine(t, effects, WithProjector(proj))

	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run := awaitRun(t, e, id)
	assert.Equal(t, RunSucceeded, run.Status)
	assert.Equal(t, []StepStatus{StepSucceeded, StepSucceeded, StepSucceeded, StepSucceeded}, stepStatuses(run))
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 4, effects.callCount())
	assert.Equal(t, []projection{{"F-001", KindRemediation, RunSucceeded}}, proj.snapshot())
	assert.Equal(t, 0, e.ActiveRuns())
}

func TestEngine_Start_StepFailureSkipsRemaining(t *testing.T) {
	effects := &scriptEffects{fail: map[int]error{2: NewStepFailure("denied", "resource policy denied update")}}
	proj := &projectionLog{}
	e := newTestEngine(t, effects, WithProjector(proj))

	id, err := e.Start("F-002", KindRemediation)
	require.NoError(t, err)

	run := awaitRun(t, e, id)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, []StepStatus{StepSucceeded, StepSucceeded, StepFailed, StepSkipped}, stepStatuses(run))
	assert.Equal(t, "denied: resource policy denied update", run.Steps[2].ErrorDetail)
	assert.Nil(t, run.Steps[3].StartedAt)
	assert.Equal(t, 3, effects.callCount(), "step 3 must never execute")
	assert.Equal(t, []projection{{"F-002", KindRemediation, RunFailed}}, proj.snapshot())
}

func TestEngine_Start_AlreadyRunning(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	first, err := e.Start("aws", KindVerification)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	_, err = e.Start("aws", KindVerification)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	var are *AlreadyRunningError
	require.True(t, errors.As(err, &are))
	assert.Equal(t, "aws", are.TargetID)
	assert.Equal(t, first, are.RunID)

	// A different kind on the same target is rejected too.
	_, err = e.Start("aws", KindRemediation)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// The first run is unaffected.
	run, err := e.GetRun(first)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
}

func TestEngine_Start_AfterCompletionAllowed(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{})

	first, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	awaitRun(t, e, first)

	second, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	awaitRun(t, e, second)
}

func TestEngine_Start_UnknownKind(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{})

	_, err := e.Start("F-001", Kind("exfiltrate"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)

	var uke *UnknownKindError
	require.True(t, errors.As(err, &uke))
	assert.Equal(t, Kind("exfiltrate"), uke.Kind)
	assert.Empty(t, e.ListRuns("F-001"))
}

func TestEngine_Start_EmptyTarget(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{})
	_, err := e.Start("", KindRemediation)
	assert.ErrorIs(t, err, ErrEmptyTarget)
}

func TestEngine_Start_PassesMetadata(t *testing.T) {
	effects := &scriptEffects{}
	e := newTestEngine(t, effects)

	md := map[string]string{"reason": "accepted risk"}
	id, err := e.Start("F-003", KindSuppression, WithMetadata(md), WithMetadata(map[string]string{"notes": "Q3 review"}))
	require.NoError(t, err)
	md["reason"] = "mutated after start"

	run := awaitRun(t, e, id)
	assert.Equal(t, map[string]string{"reason": "accepted risk", "notes": "Q3 review"}, run.Metadata)
	require.Len(t, effects.calls, 1)
	assert.Equal(t, "accepted risk", effects.calls[0].Metadata["reason"])
	assert.Equal(t, KindSuppression, effects.calls[0].Kind)
	assert.Equal(t, "Suppression Audit Record", effects.calls[0].Step.Label)
}

func TestEngine_Start_CustomIDAndClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	e := newTestEngine(t, &scriptEffects{},
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("run-%d", n) }),
	)

	id, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	run := awaitRun(t, e, id)
	assert.Equal(t, fixed, run.CreatedAt)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, fixed, *run.CompletedAt)
	assert.Zero(t, run.Duration(fixed))
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

func TestEngine_Cancel_RunningSuppressionStep(t *testing.T) {
	gate := newGate()
	proj := &projectionLog{}
	e := newTestEngine(t, gate, WithProjector(proj))

	id, err := e.Start("F-004", KindSuppression, WithMetadata(map[string]string{"reason": "false positive"}))
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	run, err := e.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, StepFailed, run.Steps[0].Status)
	assert.Equal(t, CancelledDetail, run.Steps[0].ErrorDetail)
	assert.Equal(t, []projection{{"F-004", KindSuppression, RunFailed}}, proj.snapshot())

	// The target is released immediately.
	assert.Equal(t, 0, e.ActiveRuns())

	// A late successful completion is ignored.
	gate.pass(t, nil)
	e.Wait()
	after, err := e.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, run, after)
	assert.Len(t, proj.snapshot(), 1, "projector must run exactly once")
}

func TestEngine_Cancel_MidRemediationSkipsRest(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	id, err := e.Start("F-004", KindRemediation)
	require.NoError(t, err)
	gate.waitStarted(t, 0)
	gate.pass(t, nil)
	gate.waitStarted(t, 1)

	run, err := e.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, []StepStatus{StepSucceeded, StepFailed, StepSkipped, StepSkipped}, stepStatuses(run))
	assert.Equal(t, CancelledDetail, run.Steps[1].ErrorDetail)
	assert.Equal(t, RunFailed, run.Status)

	gate.pass(t, nil)
	e.Wait()
	final, err := e.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, stepStatuses(run), stepStatuses(final))
}

func TestEngine_Cancel_PendingRunFailsFirstStep(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate, WithMaxConcurrentRuns(2))

	// Cancel straight after Start; the advancement goroutine may not have
	// begun step 0 yet, so either path must produce the same shape.
	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	run, err := e.Cancel(id)
	require.NoError(t, err)

	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, StepFailed, run.Steps[0].Status)
	assert.Equal(t, CancelledDetail, run.Steps[0].ErrorDetail)
	for _, s := range run.Steps[1:] {
		assert.Equal(t, StepSkipped, s.Status)
	}
}

func TestEngine_Cancel_Idempotent(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	first, err := e.Cancel(id)
	require.NoError(t, err)
	second, err := e.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngine_Cancel_CompletedRunUnchanged(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{})
	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	done := awaitRun(t, e, id)

	run, err := e.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, done, run)
	assert.Equal(t, RunSucceeded, run.Status)
}

func TestEngine_Cancel_UnknownRun(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{})
	_, err := e.Cancel("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = e.GetRun("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestEngine_Events_StepOrder(t *testing.T) {
	rec := newEventRecorder()
	e := newTestEngine(t, &scriptEffects{})
	sub := e.Hub().Subscribe(rec.record)
	defer sub.Unsubscribe()

	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	term := rec.waitTerminal(t)
	assert.Equal(t, id, term.RunID)
	assert.Equal(t, RunSucceeded, term.Status)
	assert.Equal(t, -1, term.StepIndex)

	events := rec.forRun(id)
	require.Len(t, events, 9)
	for i := 0; i < 4; i++ {
		running, done := events[2*i], events[2*i+1]
		assert.Equal(t, i, running.StepIndex)
		assert.Equal(t, StepRunning, running.StepStatus)
		assert.Equal(t, RunRunning, running.Status)
		assert.Equal(t, i, done.StepIndex)
		assert.Equal(t, StepSucceeded, done.StepStatus)
	}
	assert.True(t, events[8].Terminal)
	for _, ev := range events[:8] {
		assert.False(t, ev.Terminal)
	}
}

func TestEngine_Events_FailureIncludesSkipped(t *testing.T) {
	rec := newEventRecorder()
	e := newTestEngine(t, &scriptEffects{fail: map[int]error{1: errors.New("boom")}})
	sub := e.Hub().Subscribe(rec.record)
	defer sub.Unsubscribe()

	id, err := e.Start("F-002", KindRemediation)
	require.NoError(t, err)
	term := rec.waitTerminal(t)
	assert.Equal(t, RunFailed, term.Status)
	assert.Equal(t, "boom", term.Detail)

	events := rec.forRun(id)
	var tail []StepStatus
	for _, ev := range events[2:] {
		if !ev.Terminal {
			tail = append(tail, ev.StepStatus)
		}
	}
	assert.Equal(t, []StepStatus{StepRunning, StepFailed, StepSkipped, StepSkipped}, tail)
}

func TestEngine_Events_ProjectorRunsBeforeTerminalEvent(t *testing.T) {
	proj := &projectionLog{}
	e := newTestEngine(t, &scriptEffects{}, WithProjector(proj))

	seen := make(chan int, 1)
	sub := e.Hub().Subscribe(func(ev Event) error {
		if ev.Terminal {
			seen <- len(proj.snapshot())
		}
		return nil
	})
	defer sub.Unsubscribe()

	_, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	select {
	case n := <-seen:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal event")
	}
}

func TestEngine_ProjectorMayReadRun(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltinKinds(reg, nil)

	type observed struct {
		run       Run
		cancelled Run
	}
	got := make(chan observed, 2)
	var e *Engine
	proj := ProjectorFunc(func(_ string, _ Kind, _ RunStatus, run Run) {
		current, err := e.GetRun(run.ID)
		if err != nil {
			t.Errorf("GetRun from projector: %v", err)
			return
		}
		again, err := e.Cancel(run.ID)
		if err != nil {
			t.Errorf("Cancel from projector: %v", err)
			return
		}
		got <- observed{run: current, cancelled: again}
	})
	e = NewEngine(reg, &scriptEffects{fail: map[int]error{1: NewStepFailure("denied", "blocked")}}, WithProjector(proj))
	t.Cleanup(e.Close)

	id, err := e.Start("F-002", KindRemediation)
	require.NoError(t, err)

	select {
	case o := <-got:
		assert.Equal(t, RunFailed, o.run.Status)
		assert.Equal(t, o.run.Status, o.cancelled.Status)
		assert.Equal(t, stepStatuses(o.run), stepStatuses(o.cancelled))
	case <-time.After(5 * time.Second):
		t.Fatal("projector did not complete")
	}
	assert.Equal(t, RunFailed, awaitRun(t, e, id).Status)
}

// ---------------------------------------------------------------------------
// Failure conversion
// ---------------------------------------------------------------------------

func TestEngine_SideEffectPanicBecomesFailure(t *testing.T) {
	e := newTestEngine(t, SideEffectFunc(func(_ context.Context, req StepRequest) error {
		if req.Index == 1 {
			panic("kaboom")
		}
		return nil
	}))

	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	run := awaitRun(t, e, id)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, StepFailed, run.Steps[1].Status)
	assert.Contains(t, run.Steps[1].ErrorDetail, "panic")
	assert.Contains(t, run.Steps[1].ErrorDetail, "kaboom")
}

func TestEngine_StepTimeout(t *testing.T) {
	e := newTestEngine(t, SideEffectFunc(func(ctx context.Context, _ StepRequest) error {
		<-ctx.Done()
		return ctx.Err()
	}), WithStepTimeout(20*time.Millisecond))

	id, err := e.Start("aws", KindVerification)
	require.NoError(t, err)
	run := awaitRun(t, e, id)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, StepFailed, run.Steps[0].Status)
	assert.Contains(t, run.Steps[0].ErrorDetail, "timeout")
}

// ---------------------------------------------------------------------------
// Capacity, retention, clear
// ---------------------------------------------------------------------------

func TestEngine_Capacity(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate, WithMaxConcurrentRuns(1))

	first, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	_, err = e.Start("F-002", KindSuppression)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	var cee *CapacityExceededError
	require.True(t, errors.As(err, &cee))
	assert.Equal(t, 1, cee.Limit)

	// Same target still reports already running, not capacity.
	_, err = e.Start("F-001", KindSuppression)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	gate.pass(t, nil)
	awaitRun(t, e, first)

	second, err := e.Start("F-002", KindSuppression)
	require.NoError(t, err)
	gate.waitStarted(t, 0)
	gate.pass(t, nil)
	awaitRun(t, e, second)
}

func TestEngine_Retention(t *testing.T) {
	e := newTestEngine(t, &scriptEffects{}, WithRetention(2))

	var ids []string
	for range 3 {
		id, err := e.Start("F-001", KindSuppression)
		require.NoError(t, err)
		awaitRun(t, e, id)
		ids = append(ids, id)
	}

	runs := e.ListRuns("F-001")
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)

	_, err := e.GetRun(ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound, "oldest run evicted")
}

func TestEngine_ListRuns_IncludesActive(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	id, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	runs := e.ListRuns("F-001")
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.True(t, runs[0].Status.Active())
	assert.Empty(t, e.ListRuns("F-002"))
}

func TestEngine_Clear(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	id, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	assert.ErrorIs(t, e.Clear(id), ErrRunActive)

	gate.pass(t, nil)
	awaitRun(t, e, id)

	require.NoError(t, e.Clear(id))
	_, err = e.GetRun(id)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Empty(t, e.ListRuns("F-001"))
	assert.ErrorIs(t, e.Clear(id), ErrRunNotFound)
}

// ---------------------------------------------------------------------------
// Concurrency and shutdown
// ---------------------------------------------------------------------------

func TestEngine_ConcurrentTargets(t *testing.T) {
	e := newTestEngine(t, SideEffectFunc(func(context.Context, StepRequest) error {
		time.Sleep(time.Millisecond)
		return nil
	}))

	const n = 32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := e.Start(fmt.Sprintf("target-%d", i), KindRemediation)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	e.Wait()

	for _, id := range ids {
		run, err := e.GetRun(id)
		require.NoError(t, err)
		assert.Equal(t, RunSucceeded, run.Status)
	}
	assert.Equal(t, 0, e.ActiveRuns())
}

func TestEngine_ConcurrentStartSameTarget(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		started  int
		rejected int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Start("F-001", KindSuppression)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				started++
			} else if errors.Is(err, ErrAlreadyRunning) {
				rejected++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
	assert.Equal(t, n-1, rejected)
}

func TestEngine_Close(t *testing.T) {
	gate := newGate()
	reg := NewRegistry()
	RegisterBuiltinKinds(reg, nil)
	e := NewEngine(reg, gate)

	id, err := e.Start("F-001", KindRemediation)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	e.Close()

	run, err := e.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.Equal(t, StepFailed, run.Steps[0].Status)

	_, err = e.Start("F-002", KindRemediation)
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestEngine_StartDuringClose(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltinKinds(reg, nil)

	for round := range 200 {
		e := NewEngine(reg, &scriptEffects{})

		const starters = 4
		var wg sync.WaitGroup
		ids := make([]string, starters)
		errs := make([]error, starters)
		for g := range starters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids[g], errs[g] = e.Start(fmt.Sprintf("F-%d-%d", round, g), KindRemediation)
			}()
		}
		e.Close()
		wg.Wait()

		for g := range starters {
			if errs[g] != nil {
				require.ErrorIs(t, errs[g], ErrEngineClosed)
				continue
			}
			// A successful Start happened before Close, so Close waited for it.
			run, err := e.GetRun(ids[g])
			require.NoError(t, err)
			assert.True(t, run.Status.Terminal(), "run %s left %s", ids[g], run.Status)
		}
		assert.Zero(t, e.ActiveRuns())

		_, err := e.Start("late", KindRemediation)
		require.ErrorIs(t, err, ErrEngineClosed)
	}
}

func TestEngine_Await_ContextDone(t *testing.T) {
	gate := newGate()
	e := newTestEngine(t, gate)

	id, err := e.Start("F-001", KindSuppression)
	require.NoError(t, err)
	gate.waitStarted(t, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	run, err := e.Await(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, RunRunning, run.Status)

	_, err = e.Await(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
