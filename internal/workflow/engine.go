package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRetention   = 5
	defaultStepTimeout = 30 * time.Second
	shardCount         = 32
)

// shard holds the target bookkeeping for the targets hashed to it. history
// lists retained completed run IDs per target, oldest first.
type shard struct {
	mu      sync.Mutex
	active  map[string]string
	history map[string][]string
}

// runHandle owns one run. mu guards run; done is closed when the run reaches
// a terminal status.
type runHandle struct {
	mu   sync.Mutex
	run  *Run
	defs []StepDefinition
	done chan struct{}
}

// Engine starts workflow runs and advances them step by step in the
// background. Runs against different targets proceed concurrently; a target
// has at most one pending or running run at a time.
type Engine struct {
	registry  *Registry
	effects   SideEffects
	projector Projector
	hub       *Hub
	logger    *log.Logger

	shards [shardCount]shard
	runs   sync.Map // run ID -> *runHandle

	slots       *semaphore.Weighted // nil when unbounded
	maxRuns     int
	retention   int
	stepTimeout time.Duration
	now         func() time.Time
	newID       func() string

	active atomic.Int64

	// lifeMu orders Start's wg.Add against Close's Wait.
	lifeMu sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger attaches a charmbracelet/log Logger to the engine. When nil
// the engine operates silently.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithProjector sets the projector invoked once per concluded run.
func WithProjector(p Projector) EngineOption {
	return func(e *Engine) { e.projector = p }
}

// WithHub sets the hub that receives run events. By default the engine
// creates its own.
func WithHub(h *Hub) EngineOption {
	return func(e *Engine) { e.hub = h }
}

// WithMaxConcurrentRuns bounds the number of pending or running runs across
// all targets. Zero or a negative value means unbounded.
func WithMaxConcurrentRuns(n int) EngineOption {
	return func(e *Engine) { e.maxRuns = n }
}

// WithRetention sets how many completed runs are kept per target before the
// oldest is evicted (default 5). Values below 1 are treated as 1.
func WithRetention(n int) EngineOption {
	return func(e *Engine) { e.retention = max(n, 1) }
}

// WithStepTimeout sets the deadline given to each side-effect invocation
// (default 30s).
func WithStepTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides run ID generation (default: random UUID).
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine creates an engine that resolves kinds through registry and runs
// steps through effects. Neither may be nil.
func NewEngine(registry *Registry, effects SideEffects, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:    registry,
		effects:     effects,
		retention:   defaultRetention,
		stepTimeout: defaultStepTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hub == nil {
		e.hub = NewHub(WithHubLogger(e.logger))
	}
	if e.maxRuns > 0 {
		e.slots = semaphore.NewWeighted(int64(e.maxRuns))
	}
	for i := range e.shards {
		e.shards[i].active = make(map[string]string)
		e.shards[i].history = make(map[string][]string)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// StartOption configures a single Start call.
type StartOption func(*startConfig)

type startConfig struct {
	metadata map[string]string
}

// WithMetadata attaches caller inputs to the run. Repeated options merge,
// later keys winning.
func WithMetadata(md map[string]string) StartOption {
	return func(c *startConfig) {
		if c.metadata == nil {
			c.metadata = make(map[string]string, len(md))
		}
		maps.Copy(c.metadata, md)
	}
}

// Hub returns the hub the engine publishes to.
func (e *Engine) Hub() *Hub { return e.hub }

// Registry returns the kind registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Start creates a run of kind against targetID and begins advancing it in the
// background. It returns the new run ID immediately.
func (e *Engine) Start(targetID string, kind Kind, opts ...StartOption) (string, error) {
	if targetID == "" {
		return "", fmt.Errorf("workflow: start: %w", ErrEmptyTarget)
	}
	defs, err := e.registry.Steps(kind)
	if err != nil {
		return "", err
	}
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e.lifeMu.RLock()
	defer e.lifeMu.RUnlock()
	if e.closed {
		return "", fmt.Errorf("workflow: start: %w", ErrEngineClosed)
	}

	sh := e.shardFor(targetID)
	sh.mu.Lock()
	if existing, ok := sh.active[targetID]; ok {
		sh.mu.Unlock()
		return "", &AlreadyRunningError{TargetID: targetID, RunID: existing}
	}
	if e.slots != nil && !e.slots.TryAcquire(1) {
		sh.mu.Unlock()
		return "", &CapacityExceededError{Limit: e.maxRuns}
	}

	id := e.newID()
	h := &runHandle{
		run:  newRun(id, targetID, kind, defs, cfg.metadata, e.now()),
		defs: defs,
		done: make(chan struct{}),
	}
	e.runs.Store(id, h)
	sh.active[targetID] = id
	e.active.Add(1)
	e.wg.Add(1)
	sh.mu.Unlock()

	e.log("run started", "run", id, "target", targetID, "kind", kind)
	go e.advance(h)
	return id, nil
}

// GetRun returns a snapshot of the run with the given ID.
func (e *Engine) GetRun(id string) (Run, error) {
	h, ok := e.handle(id)
	if !ok {
		return Run{}, fmt.Errorf("workflow: get run %q: %w", id, ErrRunNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.Clone(), nil
}

// Cancel stops a pending or running run. The step in progress (or the first
// step, if none has started) fails with CancelledDetail and the remaining
// steps are skipped. The in-flight side effect is not interrupted; its
// result is discarded. Cancelling a terminal run returns it unchanged.
func (e *Engine) Cancel(id string) (Run, error) {
	h, ok := e.handle(id)
	if !ok {
		return Run{}, fmt.Errorf("workflow: cancel run %q: %w", id, ErrRunNotFound)
	}
	h.mu.Lock()
	if h.run.Status.Terminal() {
		defer h.mu.Unlock()
		return h.run.Clone(), nil
	}

	i := firstOpenStep(h.run)
	snapshot := e.fail(h, i, CancelledDetail)
	h.mu.Unlock()

	e.log("run cancelled", "run", id, "target", snapshot.TargetID, "step", i)
	e.finish(h, snapshot)
	return snapshot, nil
}

// Await blocks until the run reaches a terminal status or ctx is done, and
// returns the latest snapshot.
func (e *Engine) Await(ctx context.Context, id string) (Run, error) {
	h, ok := e.handle(id)
	if !ok {
		return Run{}, fmt.Errorf("workflow: await run %q: %w", id, ErrRunNotFound)
	}
	select {
	case <-h.done:
	case <-ctx.Done():
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.run.Clone(), ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.Clone(), nil
}

// ListRuns returns the active run for targetID (if any) followed by its
// retained completed runs, newest first.
func (e *Engine) ListRuns(targetID string) []Run {
	sh := e.shardFor(targetID)
	sh.mu.Lock()
	var ids []string
	if id, ok := sh.active[targetID]; ok {
		ids = append(ids, id)
	}
	hist := sh.history[targetID]
	for i := len(hist) - 1; i >= 0; i-- {
		ids = append(ids, hist[i])
	}
	sh.mu.Unlock()

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		if r, err := e.GetRun(id); err == nil {
			runs = append(runs, r)
		}
	}
	return runs
}

// Clear evicts a completed run. Active runs cannot be cleared.
func (e *Engine) Clear(id string) error {
	h, ok := e.handle(id)
	if !ok {
		return fmt.Errorf("workflow: clear run %q: %w", id, ErrRunNotFound)
	}
	h.mu.Lock()
	status, target := h.run.Status, h.run.TargetID
	h.mu.Unlock()
	if !status.Terminal() {
		return fmt.Errorf("workflow: clear run %q: %w", id, ErrRunActive)
	}

	sh := e.shardFor(target)
	sh.mu.Lock()
	sh.history[target] = removeID(sh.history[target], id)
	if len(sh.history[target]) == 0 {
		delete(sh.history, target)
	}
	sh.mu.Unlock()

	e.runs.Delete(id)
	e.debug("run cleared", "run", id, "target", target)
	return nil
}

// ActiveRuns returns the number of pending or running runs.
func (e *Engine) ActiveRuns() int { return int(e.active.Load()) }

// Wait blocks until every advancement goroutine has returned.
func (e *Engine) Wait() { e.wg.Wait() }

// Close rejects new runs, cancels the contexts of in-flight side effects and
// waits for advancement to finish. Runs interrupted this way fail with the
// side effect's context error.
func (e *Engine) Close() {
	e.lifeMu.Lock()
	e.closed = true
	e.lifeMu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// advance drives h through its steps. It exits early when the run is
// concluded from outside (Cancel).
func (e *Engine) advance(h *runHandle) {
	defer e.wg.Done()
	for i := range h.defs {
		req, ok := e.beginStep(h, i)
		if !ok {
			return
		}
		err := e.perform(req)
		if !e.endStep(h, i, err) {
			return
		}
	}
}

func (e *Engine) beginStep(h *runHandle, i int) (StepRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.run.Status.Terminal() {
		return StepRequest{}, false
	}
	h.run.startStep(i, e.now())
	e.hub.Publish(stepEvent(h.run, i, e.now()))
	e.debug("step started", "run", h.run.ID, "step", i, "label", h.defs[i].Label)
	return StepRequest{
		RunID:    h.run.ID,
		TargetID: h.run.TargetID,
		Kind:     h.run.Kind,
		Index:    i,
		Step:     h.defs[i],
		Metadata: maps.Clone(h.run.Metadata),
	}, true
}

// endStep records the outcome of step i. It returns false when advancement
// should stop.
func (e *Engine) endStep(h *runHandle, i int, err error) bool {
	h.mu.Lock()
	if h.run.Status.Terminal() {
		e.debug("late step completion ignored", "run", h.run.ID, "step", i)
		h.mu.Unlock()
		return false
	}
	if err != nil {
		snapshot := e.fail(h, i, err.Error())
		h.mu.Unlock()
		e.log("step failed", "run", snapshot.ID, "step", i, "error", err)
		e.finish(h, snapshot)
		return false
	}

	now := e.now()
	h.run.succeedStep(i, now)
	e.hub.Publish(stepEvent(h.run, i, now))
	e.debug("step succeeded", "run", h.run.ID, "step", i)

	if i < len(h.defs)-1 {
		h.mu.Unlock()
		return true
	}
	h.run.conclude(RunSucceeded, now)
	snapshot := e.settle(h)
	h.mu.Unlock()
	e.finish(h, snapshot)
	return false
}

// perform invokes the side effect with a per-step deadline, converting
// panics and deadline overruns into step failures.
func (e *Engine) perform(req StepRequest) (err error) {
	ctx, cancel := context.WithTimeout(e.ctx, e.stepTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = &StepFailure{Code: "panic", Detail: fmt.Sprintf("step %q panicked: %v", req.Step.Label, r)}
		}
	}()
	err = e.effects.Perform(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.As(err, new(*StepFailure)) {
		err = &StepFailure{Code: "timeout", Detail: fmt.Sprintf("step exceeded %s", e.stepTimeout), Err: err}
	}
	return err
}

// fail marks step i failed, skips the rest and settles the run. Caller holds
// h.mu and must call finish with the returned snapshot after unlocking.
func (e *Engine) fail(h *runHandle, i int, detail string) Run {
	now := e.now()
	skipped := h.run.failFrom(i, detail, now)
	e.hub.Publish(stepEvent(h.run, i, now))
	for _, j := range skipped {
		e.hub.Publish(stepEvent(h.run, j, now))
	}
	return e.settle(h)
}

// settle releases the target and capacity slot of a concluded run and
// returns its final snapshot. Caller holds h.mu.
func (e *Engine) settle(h *runHandle) Run {
	e.release(h.run)
	if e.slots != nil {
		e.slots.Release(1)
	}
	e.active.Add(-1)
	return h.run.Clone()
}

// finish applies the projection, publishes the terminal event and wakes
// Await callers. It runs without h.mu so the projector may read the run.
func (e *Engine) finish(h *runHandle, snapshot Run) {
	if e.projector != nil {
		e.project(snapshot)
	}
	e.hub.Publish(terminalEvent(&snapshot, e.now()))
	close(h.done)
	e.log("run finished", "run", snapshot.ID, "target", snapshot.TargetID, "kind", snapshot.Kind, "status", snapshot.Status)
}

// release drops the active entry for the run's target and moves the run into
// the retained history, evicting the oldest beyond the retention limit.
func (e *Engine) release(r *Run) {
	sh := e.shardFor(r.TargetID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.active[r.TargetID] == r.ID {
		delete(sh.active, r.TargetID)
	}
	hist := append(sh.history[r.TargetID], r.ID)
	for len(hist) > e.retention {
		e.runs.Delete(hist[0])
		e.debug("run evicted", "run", hist[0], "target", r.TargetID)
		hist = hist[1:]
	}
	sh.history[r.TargetID] = hist
}

func (e *Engine) project(snapshot Run) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logError("projector panicked", "run", snapshot.ID, "panic", rec)
		}
	}()
	e.projector.Apply(snapshot.TargetID, snapshot.Kind, snapshot.Status, snapshot)
}

func (e *Engine) handle(id string) (*runHandle, bool) {
	v, ok := e.runs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*runHandle), true
}

func (e *Engine) shardFor(targetID string) *shard {
	return &e.shards[xxhash.Sum64String(targetID)%shardCount]
}

// firstOpenStep returns the running step, or the first pending one when the
// run sits between steps.
func firstOpenStep(r *Run) int {
	for i, s := range r.Steps {
		if !s.Status.Terminal() {
			return i
		}
	}
	return len(r.Steps) - 1
}

func stepEvent(r *Run, i int, now time.Time) Event {
	s := r.Steps[i]
	return Event{
		RunID:      r.ID,
		TargetID:   r.TargetID,
		Kind:       r.Kind,
		StepIndex:  i,
		StepLabel:  s.Label,
		StepStatus: s.Status,
		Status:     r.Status,
		Detail:     s.ErrorDetail,
		Timestamp:  now,
	}
}

func terminalEvent(r *Run, now time.Time) Event {
	ev := Event{
		RunID:     r.ID,
		TargetID:  r.TargetID,
		Kind:      r.Kind,
		StepIndex: -1,
		Status:    r.Status,
		Terminal:  true,
		Timestamp: now,
	}
	if s, ok := r.FailedStep(); ok {
		ev.Detail = s.ErrorDetail
	}
	return ev
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// log writes a structured log message when a logger is attached.
func (e *Engine) log(msg string, kvs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Info(msg, kvs...)
}

func (e *Engine) debug(msg string, kvs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(msg, kvs...)
}

func (e *Engine) logError(msg string, kvs ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Error(msg, kvs...)
}
