package finding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type fixture struct {
	store  *Store
	conns  *Connections
	engine *workflow.Engine
}

func newFixture(t *testing.T, effects workflow.SideEffects) *fixture {
	t.Helper()
	store := NewStore(DefaultFindings()...)
	store.findings["F-004"] = Finding{ID: "F-004", Title: "Unused access key", Status: StatusOpen, Provider: ProviderAWS, Severity: SeverityLow}
	conns := NewConnections(DefaultConnections()...)

	reg := workflow.NewRegistry()
	workflow.RegisterBuiltinKinds(reg, nil)
	e := workflow.NewEngine(reg, effects, workflow.WithProjector(NewProjector(store, conns, nil)))
	t.Cleanup(e.Close)
	return &fixture{store: store, conns: conns, engine: e}
}

func (fx *fixture) await(t *testing.T, id string) workflow.Run {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := fx.engine.Await(ctx, id)
	require.NoError(t, err)
	return run
}

func (fx *fixture) status(t *testing.T, id string) Status {
	t.Helper()
	f, err := fx.store.Get(id)
	require.NoError(t, err)
	return f.Status
}

var succeed = workflow.SideEffectFunc(func(context.Context, workflow.StepRequest) error { return nil })

// blocking parks every step until release is closed or the step context ends.
type blocking struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlocking() *blocking {
	return &blocking{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blocking) Perform(ctx context.Context, _ workflow.StepRequest) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestScenario_RemediationSucceeds(t *testing.T) {
	fx := newFixture(t, succeed)

	id, err := fx.engine.Start("F-001", workflow.KindRemediation)
	require.NoError(t, err)
	run := fx.await(t, id)

	assert.Equal(t, workflow.RunSucceeded, run.Status)
	assert.Equal(t, StatusFixed, fx.status(t, "F-001"))
}

func TestScenario_RemediationFailsAtDeployment(t *testing.T) {
	fx := newFixture(t, workflow.SideEffectFunc(func(_ context.Context, req workflow.StepRequest) error {
		if req.Index == 2 {
			return workflow.NewStepFailure("denied", "encryption key not accessible")
		}
		return nil
	}))

	id, err := fx.engine.Start("F-002", workflow.KindRemediation)
	require.NoError(t, err)
	run := fx.await(t, id)

	assert.Equal(t, workflow.RunFailed, run.Status)
	assert.Equal(t, StatusOpen, fx.status(t, "F-002"))

	f, err := fx.store.Get("F-002")
	require.NoError(t, err)
	require.Len(t, f.Annotations, 1)
	assert.Equal(t, AnnotationRemediationFailed, f.Annotations[0].Kind)
	assert.Equal(t, id, f.Annotations[0].RunID)
	assert.Equal(t, "Remediation Deployment failed: denied: encryption key not accessible", f.Annotations[0].Message)
}

func TestScenario_DuplicateVerificationRejected(t *testing.T) {
	b := newBlocking()
	fx := newFixture(t, b)

	_, err := fx.engine.Start("F-003", workflow.KindVerification)
	require.NoError(t, err)
	<-b.started

	_, err = fx.engine.Start("F-003", workflow.KindVerification)
	assert.ErrorIs(t, err, workflow.ErrAlreadyRunning)
}

func TestScenario_SuppressionCancelled(t *testing.T) {
	b := newBlocking()
	fx := newFixture(t, b)

	id, err := fx.engine.Start("F-004", workflow.KindSuppression,
		workflow.WithMetadata(map[string]string{MetaReason: "Risk Accepted"}))
	require.NoError(t, err)
	<-b.started

	run, err := fx.engine.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, run.Status)
	assert.Equal(t, workflow.StepFailed, run.Steps[0].Status)
	assert.Equal(t, workflow.CancelledDetail, run.Steps[0].ErrorDetail)

	close(b.release)
	fx.engine.Wait()
	assert.Equal(t, StatusOpen, fx.status(t, "F-004"), "cancelled suppression must not mute")
}

func TestScenario_SuppressionMutesWithJustification(t *testing.T) {
	fx := newFixture(t, succeed)

	id, err := fx.engine.Start("F-003", workflow.KindSuppression, workflow.WithMetadata(map[string]string{
		MetaReason: "Compensating Control",
		MetaNotes:  "VPC-SC perimeter in place",
	}))
	require.NoError(t, err)
	fx.await(t, id)

	f, err := fx.store.Get("F-003")
	require.NoError(t, err)
	assert.Equal(t, StatusMuted, f.Status)
	require.Len(t, f.Annotations, 1)
	assert.Equal(t, "suppressed: Compensating Control (VPC-SC perimeter in place)", f.Annotations[0].Message)
}

func TestScenario_VerificationUpdatesConnection(t *testing.T) {
	fx := newFixture(t, workflow.SideEffectFunc(func(_ context.Context, req workflow.StepRequest) error {
		if req.TargetID == "Azure" && req.Index == 1 {
			return workflow.NewStepFailure("expired", "session token expired")
		}
		return nil
	}))

	ok, err := fx.engine.Start("AWS", workflow.KindVerification)
	require.NoError(t, err)
	bad, err := fx.engine.Start("Azure", workflow.KindVerification)
	require.NoError(t, err)
	fx.await(t, ok)
	fx.await(t, bad)

	aws, err := fx.conns.Get(ProviderAWS)
	require.NoError(t, err)
	assert.Equal(t, ConnectionConnected, aws.Status)
	assert.NotNil(t, aws.LastChecked)

	az, err := fx.conns.Get(ProviderAzure)
	require.NoError(t, err)
	assert.Equal(t, ConnectionError, az.Status)
	assert.Contains(t, az.Detail, "STS Token Exchange")

	gcp, err := fx.conns.Get(ProviderGCP)
	require.NoError(t, err)
	assert.Equal(t, ConnectionDisconnected, gcp.Status)
}

// ---------------------------------------------------------------------------
// Direct projector behavior
// ---------------------------------------------------------------------------

func TestProjector_NoOpCases(t *testing.T) {
	store := NewStore(DefaultFindings()...)
	conns := NewConnections(DefaultConnections()...)
	p := NewProjector(store, conns, nil)

	// Failed suppression, unknown target, unknown kind and unknown provider
	// leave everything unchanged.
	p.Apply("F-001", workflow.KindSuppression, workflow.RunFailed, workflow.Run{})
	p.Apply("F-404", workflow.KindRemediation, workflow.RunSucceeded, workflow.Run{})
	p.Apply("F-001", workflow.Kind("other"), workflow.RunSucceeded, workflow.Run{})
	p.Apply("oracle", workflow.KindVerification, workflow.RunSucceeded, workflow.Run{})
	p.Apply("F-001", workflow.KindRemediation, workflow.RunRunning, workflow.Run{})

	assert.Equal(t, NewStore(DefaultFindings()...).List(), store.List())
	assert.Equal(t, NewConnections(DefaultConnections()...).List(), conns.List())
}

func TestProjector_RemediationExactlyFixed(t *testing.T) {
	store := NewStore(DefaultFindings()...)
	require.NoError(t, store.SetStatus("F-001", StatusMuted))
	p := NewProjector(store, NewConnections(), nil)

	p.Apply("F-001", workflow.KindRemediation, workflow.RunSucceeded, workflow.Run{ID: "r"})
	f, err := store.Get("F-001")
	require.NoError(t, err)
	assert.Equal(t, StatusFixed, f.Status)
	assert.Empty(t, f.Annotations)
}
