package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/config"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/logging"
)

// Environment variables consulted for flags that were not set explicitly.
const (
	envConfig  = "SENTINEL_CONFIG"
	envVerbose = "SENTINEL_VERBOSE"
	envQuiet   = "SENTINEL_QUIET"
	envNoColor = "SENTINEL_NO_COLOR"
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose     bool
	flagQuiet       bool
	flagConfig      string
	flagNoColor     bool
	flagMaxRuns     int
	flagStepTimeout time.Duration
)

// rootCmd is the base command for Sentinel.
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Cloud security workflow execution engine",
	Long: `Sentinel runs multi-step remediation, verification, and suppression
workflows against cloud security findings, one active run per target, and
reports step-by-step progress as it happens.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv(envVerbose) != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv(envQuiet) != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv(envNoColor) != "") {
			flagNoColor = true
		}
		if !cmd.Flags().Changed("config") {
			if p := os.Getenv(envConfig); p != "" {
				flagConfig = p
			}
		}

		jsonFormat, err := logging.ParseFormat(os.Getenv(logging.EnvFormat))
		if err != nil {
			return err
		}
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: SENTINEL_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: SENTINEL_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to sentinel.toml config file (env: SENTINEL_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: SENTINEL_NO_COLOR, NO_COLOR)")
	rootCmd.PersistentFlags().IntVar(&flagMaxRuns, "max-concurrent-runs", 0, "Override engine.max_concurrent_runs (0 = unbounded)")
	rootCmd.PersistentFlags().DurationVar(&flagStepTimeout, "step-timeout", 0, "Override engine.step_timeout")
}

// Execute runs the root command and returns the exit code. SIGINT and SIGTERM
// cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// NewRootCmd returns a new instance of the root command for use in external
// tools such as the shell completion generator and man page generator. The
// persistent flags are bound to local variables so the returned tree is safe
// for concurrent use by generators.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               rootCmd.Use,
		Short:             rootCmd.Short,
		Long:              rootCmd.Long,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rootCmd.PersistentPreRunE,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) output (env: SENTINEL_VERBOSE)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors (env: SENTINEL_QUIET)")
	cmd.PersistentFlags().String("config", "", "Path to sentinel.toml config file (env: SENTINEL_CONFIG)")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output (env: SENTINEL_NO_COLOR, NO_COLOR)")
	cmd.PersistentFlags().Int("max-concurrent-runs", 0, "Override engine.max_concurrent_runs (0 = unbounded)")
	cmd.PersistentFlags().Duration("step-timeout", 0, "Override engine.step_timeout")

	for _, child := range rootCmd.Commands() {
		cmd.AddCommand(child)
	}
	return cmd
}

// cliOverrides collects the persistent flags that were set explicitly.
func cliOverrides(cmd *cobra.Command) *config.CLIOverrides {
	o := &config.CLIOverrides{}
	if f := cmd.Flag("max-concurrent-runs"); f != nil && f.Changed {
		n := flagMaxRuns
		o.MaxConcurrentRuns = &n
	}
	if f := cmd.Flag("step-timeout"); f != nil && f.Changed {
		d := flagStepTimeout
		o.StepTimeout = &d
	}
	return o
}
