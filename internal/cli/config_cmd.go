package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/config"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// configCmd is the parent "config" namespace command. It has no action of its
// own -- it groups the show, validate, and init subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Inspect, validate, and scaffold Sentinel configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowTOML bool

// configShowCmd implements "sentinel config show".
// It prints the fully-resolved configuration with source annotations.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with source annotations",
	Long: `Display the fully-resolved configuration showing each value and
the source where it came from (cli flag, environment variable, config file, or default).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, _, err := loadAndResolveConfig(cmd, nil)
		if err != nil {
			return err
		}
		if configShowTOML {
			return config.Encode(cmd.OutOrStdout(), resolved.Config)
		}
		printResolvedConfig(cmd, resolved)
		return nil
	},
}

// configValidateCmd implements "sentinel config validate".
// It validates the resolved configuration and reports all errors and warnings.
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and report issues",
	Long:  "Check the configuration for errors and warnings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, meta, err := loadAndResolveConfig(cmd, nil)
		if err != nil {
			return err
		}
		result := config.Validate(resolved.Config, meta)
		printValidationResult(cmd, result)
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
		}
		return nil
	},
}

var configInitForce bool

// configInitCmd implements "sentinel config init [dir]".
var configInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a commented sentinel.toml starter file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		path, err := config.WriteTemplate(dir, configInitForce)
		if err != nil {
			if errors.Is(err, config.ErrConfigExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowTOML, "toml", false, "Print the resolved configuration as TOML")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing sentinel.toml")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// ---- Lipgloss styles --------------------------------------------------------

// sourceStyle returns a lipgloss style for a given ConfigSource.
// When --no-color is active, lipgloss automatically strips ANSI because
// the root PersistentPreRunE sets the color profile to Ascii.
func sourceStyle(src config.ConfigSource) lipgloss.Style {
	switch src {
	case config.SourceFile:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // bright blue
	case config.SourceEnv:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // bright yellow
	case config.SourceCLI:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")) // bright red
	default: // SourceDefault
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // bright green
	}
}

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleSeparator = lipgloss.NewStyle()
	styleSection   = lipgloss.NewStyle().Bold(true)
	styleErrorLbl  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	styleWarnLbl   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true) // yellow
	styleSuccess   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))            // green
)

// ---- printResolvedConfig ----------------------------------------------------

const fieldWidth = 24 // column width for field names

// printResolvedConfig writes the formatted resolved configuration to cmd's
// output writer (stdout by default).
func printResolvedConfig(cmd *cobra.Command, rc *config.ResolvedConfig) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Resolved Configuration")
	sep := styleSeparator.Render(strings.Repeat("=", len("Resolved Configuration")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)

	if rc.Path != "" {
		fmt.Fprintf(out, "Config file: %s\n", rc.Path)
	} else {
		fmt.Fprintln(out, "Config file: none found")
	}
	fmt.Fprintln(out)

	c := rc.Config

	fmt.Fprintln(out, styleSection.Render("[engine]"))
	e := c.Engine
	printField(out, "max_concurrent_runs", fmtInt(e.MaxConcurrentRuns), rc.Sources["engine.max_concurrent_runs"])
	printField(out, "retention_per_target", fmtInt(e.RetentionPerTarget), rc.Sources["engine.retention_per_target"])
	printField(out, "step_timeout", fmtStr(e.StepTimeout.String()), rc.Sources["engine.step_timeout"])
	printField(out, "start_retries", fmtInt(e.StartRetries), rc.Sources["engine.start_retries"])
	printField(out, "start_backoff", fmtStr(e.StartBackoff.String()), rc.Sources["engine.start_backoff"])
	fmt.Fprintln(out)

	for _, k := range workflow.BuiltinKinds() {
		p, _ := c.Simulation.Profile(k)
		prefix := "simulation." + string(k)
		fmt.Fprintln(out, styleSection.Render("["+prefix+"]"))
		printField(out, "min_delay", fmtStr(p.MinDelay.String()), rc.Sources[prefix+".min_delay"])
		printField(out, "jitter", fmtStr(p.Jitter.String()), rc.Sources[prefix+".jitter"])
		fmt.Fprintln(out)
	}

	if len(c.Simulation.Failures) > 0 {
		src := rc.Sources["simulation.failures"]
		for _, f := range c.Simulation.Failures {
			fmt.Fprintln(out, styleSection.Render("[[simulation.failures]]"))
			printField(out, "target", fmtStr(f.Target), src)
			printField(out, "kind", fmtStr(f.Kind), src)
			step := "any"
			if f.Step != nil {
				step = fmtInt(*f.Step)
			}
			printField(out, "step", step, src)
			printField(out, "code", fmtStr(f.Code), src)
			fmt.Fprintln(out)
		}
	}

	// [workflows.*] sorted for determinism.
	for _, name := range c.WorkflowNames() {
		wf := c.Workflows[name]
		labels := make([]string, len(wf.Steps))
		for i, s := range wf.Steps {
			labels[i] = s.Label
		}
		fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("[workflows.%s]", name)))
		printField(out, "steps", fmtSlice(labels), rc.Sources["workflows."+name])
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, styleSection.Render("[server]"))
	printField(out, "addr", fmtStr(c.Server.Addr), rc.Sources["server.addr"])
	printField(out, "shutdown_timeout", fmtStr(c.Server.ShutdownTimeout.String()), rc.Sources["server.shutdown_timeout"])
}

// printField writes a single key = value (source: ...) line.
func printField(out io.Writer, name, value string, src config.ConfigSource) {
	padded := fmt.Sprintf("  %-*s", fieldWidth, name)
	srcLabel := sourceStyle(src).Render(fmt.Sprintf("(source: %s)", src))
	line := fmt.Sprintf("%s = %-40s %s\n", padded, value, srcLabel)
	fmt.Fprint(out, line)
}

// fmtStr formats a string value for display (quoted).
func fmtStr(s string) string {
	return fmt.Sprintf("%q", s)
}

func fmtInt(n int) string {
	return fmt.Sprintf("%d", n)
}

// fmtSlice formats a string slice for display.
func fmtSlice(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ---- printValidationResult --------------------------------------------------

// printValidationResult writes the formatted validation report to cmd's
// output writer.
func printValidationResult(cmd *cobra.Command, result *config.ValidationResult) {
	out := cmd.OutOrStdout()

	header := styleHeader.Render("Configuration Validation")
	sep := styleSeparator.Render(strings.Repeat("=", len("Configuration Validation")))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, sep)
	fmt.Fprintln(out)

	errs := result.Errors()
	warns := result.Warnings()

	if len(errs) == 0 && len(warns) == 0 {
		fmt.Fprintln(out, styleSuccess.Render("No issues found."))
		return
	}

	if len(errs) > 0 {
		fmt.Fprintln(out, styleErrorLbl.Render("Errors:"))
		for _, issue := range errs {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	if len(warns) > 0 {
		fmt.Fprintln(out, styleWarnLbl.Render("Warnings:"))
		for _, issue := range warns {
			fmt.Fprintf(out, "  [%s] %s\n", issue.Field, issue.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(errs), len(warns))
}
