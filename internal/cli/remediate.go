package cli

import (
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

var remediateOpts runOptions

// remediateCmd implements "sentinel remediate <id|glob>...".
var remediateCmd = &cobra.Command{
	Use:   "remediate <finding-id|glob>...",
	Short: "Apply the automated fix to one or more open findings",
	Long: `Run the remediation workflow against each finding. Arguments are finding
IDs or doublestar globs over IDs (for example 'F-00*'); globs expand to the
open findings they match. Targets run concurrently, and a succeeded run
marks its finding Fixed.`,
	Example: `  sentinel remediate F-001
  sentinel remediate 'F-00*' --tui
  sentinel remediate F-002 --cancel-after 1s`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRuns(cmd, workflow.KindRemediation, args, remediateOpts)
	},
}

var verifyOpts runOptions

// verifyCmd implements "sentinel verify <provider>...".
var verifyCmd = &cobra.Command{
	Use:   "verify <provider>...",
	Short: "Verify cloud provider connections",
	Long: `Run the verification workflow for each provider (aws, azure, gcp). A
succeeded run marks the provider connected; a failed run records the error.`,
	Example: `  sentinel verify aws
  sentinel verify aws azure gcp`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"aws", "azure", "gcp"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRuns(cmd, workflow.KindVerification, args, verifyOpts)
	},
}

func init() {
	addRunFlags(remediateCmd, &remediateOpts)
	addRunFlags(verifyCmd, &verifyOpts)
	rootCmd.AddCommand(remediateCmd)
	rootCmd.AddCommand(verifyCmd)
}
