package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// formWidth is the width of the interactive suppression form.
const formWidth = 72

// ErrSuppressionAborted is returned when the user aborts the reason form.
var ErrSuppressionAborted = errors.New("suppression aborted")

var (
	suppressOpts   runOptions
	suppressReason string
	suppressNotes  string
)

// Indirections replaced in tests.
var (
	stdinIsTTY        = isStdinTTY
	promptSuppression = runSuppressionForm
)

// suppressCmd implements "sentinel suppress <finding-id>".
var suppressCmd = &cobra.Command{
	Use:   "suppress <finding-id>",
	Short: "Suppress an open finding with a justification",
	Long: `Record a suppression decision for an open finding. A reason is required;
when --reason is omitted and stdin is a terminal an interactive form asks for
it. A succeeded run marks the finding Muted and records the justification.`,
	Example: `  sentinel suppress F-003 --reason "Risk Accepted" --notes "legacy bucket, retiring Q3"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, notes := strings.TrimSpace(suppressReason), suppressNotes
		if reason == "" {
			if !stdinIsTTY() {
				return fmt.Errorf("--reason is required (for example one of: %s)", strings.Join(finding.SuppressionReasons, ", "))
			}
			if err := promptSuppression(&reason, &notes); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return ErrSuppressionAborted
				}
				return fmt.Errorf("suppression form: %w", err)
			}
			if strings.TrimSpace(reason) == "" {
				return ErrSuppressionAborted
			}
		}

		opts := suppressOpts
		opts.metadata = map[string]string{finding.MetaReason: reason}
		if notes = strings.TrimSpace(notes); notes != "" {
			opts.metadata[finding.MetaNotes] = notes
		}
		return executeRuns(cmd, workflow.KindSuppression, args, opts)
	},
}

func init() {
	addRunFlags(suppressCmd, &suppressOpts)
	suppressCmd.Flags().StringVar(&suppressReason, "reason", "", "Suppression reason (e.g. \"False Positive\")")
	suppressCmd.Flags().StringVar(&suppressNotes, "notes", "", "Optional notes recorded with the suppression")
	rootCmd.AddCommand(suppressCmd)
}

// runSuppressionForm asks for a reason and optional notes.
func runSuppressionForm(reason, notes *string) error {
	options := make([]huh.Option[string], len(finding.SuppressionReasons))
	for i, r := range finding.SuppressionReasons {
		options[i] = huh.NewOption(r, r)
	}
	*reason = finding.SuppressionReasons[0]

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Why is this finding being suppressed?").
				Options(options...).
				Value(reason),
			huh.NewText().
				Title("Notes").
				Description("Optional justification recorded on the finding.").
				CharLimit(500).
				Value(notes),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(formWidth).
		Run()
}

// isStdinTTY reports whether stdin is attached to a terminal.
// It uses os.ModeCharDevice on the file info to avoid adding new dependencies.
func isStdinTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
