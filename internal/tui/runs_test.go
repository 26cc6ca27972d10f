package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

func TestRunRow_ApplyTracksSteps(t *testing.T) {
	t.Parallel()

	run := makeRun("r1", "F-001", workflow.KindRemediation, 3)
	row := NewRunRow(run)

	row.Apply(stepEv(run, 0, workflow.StepRunning, workflow.RunRunning))
	assert.Equal(t, workflow.RunRunning, row.Run.Status)
	assert.Equal(t, "Step A", row.Activity())
	require.NotNil(t, row.Run.Steps[0].StartedAt)

	row.Apply(stepEv(run, 0, workflow.StepSucceeded, workflow.RunRunning))
	assert.InDelta(t, 1.0/3.0, row.Fraction(), 0.001)
	assert.Equal(t, "waiting", row.Activity())

	fail := stepEv(run, 1, workflow.StepFailed, workflow.RunRunning)
	fail.Detail = "denied"
	row.Apply(fail)
	row.Apply(stepEv(run, 2, workflow.StepSkipped, workflow.RunRunning))
	row.Apply(terminalEv(run, workflow.RunFailed, "denied"))

	assert.True(t, row.Done())
	assert.Equal(t, 1.0, row.Fraction())
	assert.Equal(t, "denied", row.Run.Steps[1].ErrorDetail)
	assert.Equal(t, "Step B failed", row.Activity())
	require.NotNil(t, row.Run.CompletedAt)
	assert.Equal(t, time.Minute, row.Elapsed(testEpoch.Add(time.Hour)))
}

func TestRunRow_IgnoresForeignAndOutOfRange(t *testing.T) {
	t.Parallel()

	run := makeRun("r1", "F-001", workflow.KindSuppression, 1)
	row := NewRunRow(run)

	other := stepEv(run, 0, workflow.StepRunning, workflow.RunRunning)
	other.RunID = "r2"
	row.Apply(other)
	assert.Equal(t, workflow.RunPending, row.Run.Status)

	bad := stepEv(run, 0, workflow.StepRunning, workflow.RunRunning)
	bad.StepIndex = 7
	row.Apply(bad)
	assert.Equal(t, workflow.StepPending, row.Run.Steps[0].Status)
}

func TestRunRow_DoesNotAliasSnapshot(t *testing.T) {
	t.Parallel()

	run := makeRun("r1", "F-001", workflow.KindRemediation, 2)
	row := NewRunRow(run)
	row.Apply(stepEv(run, 0, workflow.StepRunning, workflow.RunRunning))

	assert.Equal(t, workflow.StepPending, run.Steps[0].Status)
}

func TestRunRow_ActivityIncludesDescription(t *testing.T) {
	t.Parallel()

	run := makeRun("r1", "AWS", workflow.KindVerification, 1)
	run.Steps[0].Description = "Checking IAM role"
	row := NewRunRow(run)
	row.Apply(stepEv(run, 0, workflow.StepRunning, workflow.RunRunning))

	assert.Equal(t, "Step A: Checking IAM role", row.Activity())
}

func TestRunRow_FractionEmpty(t *testing.T) {
	t.Parallel()

	row := NewRunRow(makeRun("r1", "F-001", workflow.KindRemediation, 0))
	assert.Zero(t, row.Fraction())
}
