package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// steps builds a step list from labels.
func steps(labels ...string) []StepDefinition {
	out := make([]StepDefinition, len(labels))
	for i, l := range labels {
		out[i] = StepDefinition{Label: l, Description: l + " description"}
	}
	return out
}

// mustPanic executes f and returns the recovered value. It calls t.Fatal if f
// does not panic at all.
func mustPanic(t *testing.T, f func()) (recovered any) {
	t.Helper()
	defer func() { recovered = recover() }()
	f()
	t.Fatal("expected panic but function returned normally")
	return nil
}

// ---------------------------------------------------------------------------
// Register / Steps
// ---------------------------------------------------------------------------

func TestNewRegistry_IsEmpty(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	assert.Empty(t, r.Kinds())
	assert.False(t, r.Has(KindRemediation))
}

func TestRegistry_Steps_ReturnsCopy(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	input := steps("a", "b")
	r.Register(KindRemediation, input)

	input[0].Label = "mutated"
	got, err := r.Steps(KindRemediation)
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].Label)

	got[1].Label = "mutated"
	again, err := r.Steps(KindRemediation)
	require.NoError(t, err)
	assert.Equal(t, "b", again[1].Label)
}

func TestRegistry_Steps_UnknownKind(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Steps(KindVerification)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	assert.Contains(t, err.Error(), "verification")
}

func TestRegistry_Kinds_Sorted(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(KindVerification, steps("v"))
	r.Register(KindRemediation, steps("r"))
	r.Register(KindSuppression, steps("s"))
	assert.Equal(t, []Kind{KindRemediation, KindSuppression, KindVerification}, r.Kinds())
}

func TestRegistry_ParseKind(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(KindRemediation, steps("r"))

	k, err := r.ParseKind("remediation")
	require.NoError(t, err)
	assert.Equal(t, KindRemediation, k)

	_, err = r.ParseKind("Remediation")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

// TestRegistry_Register_PanicCases covers every panic condition for
// Registry.Register in a single table-driven test.
func TestRegistry_Register_PanicCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setupFn    func(r *Registry)
		registerFn func(r *Registry)
		wantPanic  bool
	}{
		{
			name:       "empty kind panics",
			setupFn:    func(_ *Registry) {},
			registerFn: func(r *Registry) { r.Register("", steps("a")) },
			wantPanic:  true,
		},
		{
			name:       "no steps panics",
			setupFn:    func(_ *Registry) {},
			registerFn: func(r *Registry) { r.Register(KindRemediation, nil) },
			wantPanic:  true,
		},
		{
			name:       "duplicate kind panics",
			setupFn:    func(r *Registry) { r.Register(KindRemediation, steps("a")) },
			registerFn: func(r *Registry) { r.Register(KindRemediation, steps("b")) },
			wantPanic:  true,
		},
		{
			name:       "valid kind does not panic",
			setupFn:    func(_ *Registry) {},
			registerFn: func(r *Registry) { r.Register(KindSuppression, steps("a")) },
			wantPanic:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRegistry()
			tt.setupFn(r)
			if tt.wantPanic {
				assert.Panics(t, func() { tt.registerFn(r) })
			} else {
				assert.NotPanics(t, func() { tt.registerFn(r) })
			}
		})
	}
}

func TestRegistry_Register_DuplicateMessage(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(KindVerification, steps("a"))
	recovered := mustPanic(t, func() { r.Register(KindVerification, steps("a")) })
	msg, ok := recovered.(string)
	require.True(t, ok)
	assert.Contains(t, msg, "verification")
	assert.Contains(t, msg, "already registered")
}

// ---------------------------------------------------------------------------
// Error types
// ---------------------------------------------------------------------------

func TestErrorTypes_MatchSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"already running", &AlreadyRunningError{TargetID: "F-001", RunID: "r1"}, ErrAlreadyRunning, "r1"},
		{"unknown kind", &UnknownKindError{Kind: "bogus"}, ErrUnknownKind, "bogus"},
		{"capacity", &CapacityExceededError{Limit: 3}, ErrCapacityExceeded, "limit 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			wrapped := errors.Join(errors.New("outer"), tt.err)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}

	assert.NotErrorIs(t, &UnknownKindError{Kind: "x"}, ErrAlreadyRunning)
}

func TestStepFailure_Error(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")

	assert.Equal(t, "denied: no access", NewStepFailure("denied", "no access").Error())
	assert.Equal(t, "timeout: connection reset", (&StepFailure{Code: "timeout", Err: cause}).Error())
	assert.Equal(t, "plain", (&StepFailure{Detail: "plain"}).Error())
	assert.Equal(t, "code-only", (&StepFailure{Code: "code-only"}).Error())
	assert.ErrorIs(t, &StepFailure{Code: "x", Err: cause}, cause)
}
