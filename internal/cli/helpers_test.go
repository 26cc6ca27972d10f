package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// fastConfig runs every step instantly and fails F-002 remediation at the
// third step.
const fastConfig = `
[engine]
step_timeout = "5s"
start_backoff = "10ms"

[simulation.verification]
min_delay = "0s"
jitter = "0s"

[simulation.remediation]
min_delay = "0s"
jitter = "0s"

[[simulation.failures]]
target = "F-002"
kind = "remediation"
step = 2
code = "denied"
detail = "key vault locked"
`

// resetRootCmd resets all global flag values and Cobra's internal "Changed"
// tracking to pristine state. This must be called at the start of every test
// that executes rootCmd.
func resetRootCmd(t *testing.T) {
	t.Helper()
	flagVerbose = false
	flagQuiet = false
	flagConfig = ""
	flagNoColor = false
	flagMaxRuns = 0
	flagStepTimeout = 0
	rootCmd.SetArgs(nil)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)

	var visit func(c *cobra.Command)
	visit = func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
		for _, child := range c.Commands() {
			visit(child)
		}
	}
	visit(rootCmd)

	origTTY, origPrompt := stdinIsTTY, promptSuppression
	t.Cleanup(func() {
		stdinIsTTY, promptSuppression = origTTY, origPrompt
	})
	stdinIsTTY = func() bool { return false }
}

// runCLI executes rootCmd with args and returns the combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetRootCmd(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// writeConfig writes content to sentinel.toml in a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testdataPath returns the path to a file in the repository testdata dir.
func testdataPath(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

// runCLIWithHooks is runCLI with hooks applied after the reset.
func runCLIWithHooks(t *testing.T, hooks func(), args ...string) (string, error) {
	t.Helper()
	resetRootCmd(t)
	hooks()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
