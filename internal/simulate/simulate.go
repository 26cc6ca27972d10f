// Package simulate provides the demo side-effect provider: each step waits a
// randomized delay and then succeeds, unless a configured failure injection
// matches it.
package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// AnyStep matches every step index in a Failure.
const AnyStep = -1

// Failure codes produced by the simulator itself.
const (
	CodeReasonRequired = "reason_required"
	CodeInjected       = "injected"
)

// Profile is the delay model for one kind: each step takes MinDelay plus a
// uniformly random duration in [0, Jitter).
type Profile struct {
	MinDelay time.Duration
	Jitter   time.Duration
}

// DefaultProfiles returns the stock delay model per kind.
func DefaultProfiles() map[workflow.Kind]Profile {
	return map[workflow.Kind]Profile{
		workflow.KindRemediation:  {MinDelay: 800 * time.Millisecond, Jitter: 600 * time.Millisecond},
		workflow.KindVerification: {MinDelay: 600 * time.Millisecond, Jitter: 800 * time.Millisecond},
		workflow.KindSuppression:  {},
	}
}

// Failure forces a step to fail. Target is a doublestar pattern over target
// IDs; an empty Kind matches every kind.
type Failure struct {
	Target string
	Kind   workflow.Kind
	Step   int
	Code   string
	Detail string
}

func (f Failure) matches(req workflow.StepRequest) bool {
	if f.Kind != "" && f.Kind != req.Kind {
		return false
	}
	if f.Step != AnyStep && f.Step != req.Index {
		return false
	}
	ok, err := doublestar.Match(f.Target, req.TargetID)
	return err == nil && ok
}

// Simulator implements workflow.SideEffects.
type Simulator struct {
	profiles map[workflow.Kind]Profile
	failures []Failure
	logger   *log.Logger
	jitter   func(n int64) int64
}

var _ workflow.SideEffects = (*Simulator)(nil)

// Option configures a Simulator.
type Option func(*Simulator)

// WithProfile overrides the delay model for kind.
func WithProfile(kind workflow.Kind, p Profile) Option {
	return func(s *Simulator) { s.profiles[kind] = p }
}

// WithFailures appends failure injections. The first matching injection wins.
func WithFailures(fs ...Failure) Option {
	return func(s *Simulator) { s.failures = append(s.failures, fs...) }
}

// WithLogger attaches a logger for step tracing.
func WithLogger(logger *log.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// WithJitterSource replaces the random source used for jitter. fn must
// return a value in [0, n).
func WithJitterSource(fn func(n int64) int64) Option {
	return func(s *Simulator) { s.jitter = fn }
}

// New creates a simulator with the default profiles.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		profiles: DefaultProfiles(),
		jitter:   rand.Int64N,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Perform waits the step delay, honoring ctx, then reports the outcome.
func (s *Simulator) Perform(ctx context.Context, req workflow.StepRequest) error {
	if req.Kind == workflow.KindSuppression && strings.TrimSpace(req.Metadata[finding.MetaReason]) == "" {
		return workflow.NewStepFailure(CodeReasonRequired, "a suppression reason is required")
	}

	d := s.Delay(req.Kind)
	if s.logger != nil {
		s.logger.Debug("simulating step", "run", req.RunID, "target", req.TargetID, "step", req.Step.Label, "delay", d)
	}
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	for _, f := range s.failures {
		if f.matches(req) {
			code := f.Code
			if code == "" {
				code = CodeInjected
			}
			detail := f.Detail
			if detail == "" {
				detail = fmt.Sprintf("%s failed on %s", req.Step.Label, req.TargetID)
			}
			return workflow.NewStepFailure(code, detail)
		}
	}
	return nil
}

// Delay samples the step delay for kind.
func (s *Simulator) Delay(kind workflow.Kind) time.Duration {
	p := s.profiles[kind]
	d := p.MinDelay
	if p.Jitter > 0 {
		d += time.Duration(s.jitter(int64(p.Jitter)))
	}
	return d
}
