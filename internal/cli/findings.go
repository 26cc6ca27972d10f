package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/config"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/httpapi"
)

var (
	findingsStatus string
	findingsMatch  string
	findingsRemote bool
	findingsServer string
	findingsJSON   bool
)

// findingsCmd implements "sentinel findings"; with no subcommand it lists.
var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Inspect security findings",
	Long: `List and inspect the security findings that workflows act on. By default
the seeded local catalog is shown; --remote queries a running 'sentinel serve'
instead, which reflects the outcome of runs started against it.`,
	Args: cobra.NoArgs,
	RunE: runFindingsList,
}

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings",
	Args:  cobra.NoArgs,
	RunE:  runFindingsList,
}

var findingsShowCmd = &cobra.Command{
	Use:   "show <finding-id>",
	Short: "Show one finding with its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			f   finding.Finding
			err error
		)
		if findingsRemote {
			c, cerr := findingsClient(cmd)
			if cerr != nil {
				return cerr
			}
			f, err = c.GetFinding(cmd.Context(), args[0])
		} else {
			f, err = finding.NewStore(finding.DefaultFindings()...).Get(args[0])
		}
		if err != nil {
			return err
		}
		if findingsJSON {
			return writeJSON(cmd.OutOrStdout(), f)
		}
		printFinding(cmd.OutOrStdout(), f)
		return nil
	},
}

var findingsReopenCmd = &cobra.Command{
	Use:   "reopen <finding-id>",
	Short: "Reopen a Fixed or Muted finding on a running server",
	Long: `Restore a Fixed or Muted finding to Open so it can be remediated again.
Finding state lives in the server process, so this always talks to a running
'sentinel serve' (server.addr, SENTINEL_ADDR, or --server).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := findingsClient(cmd)
		if err != nil {
			return err
		}
		f, err := c.ReopenFinding(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if findingsJSON {
			return writeJSON(cmd.OutOrStdout(), f)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", f.ID, f.Status)
		return nil
	},
}

func init() {
	pf := findingsCmd.PersistentFlags()
	pf.BoolVar(&findingsRemote, "remote", false, "Query a running server instead of the local catalog")
	pf.StringVar(&findingsServer, "server", "", "Server address (default: server.addr)")
	pf.BoolVar(&findingsJSON, "json", false, "Output as JSON")

	for _, c := range []*cobra.Command{findingsCmd, findingsListCmd} {
		c.Flags().StringVar(&findingsStatus, "status", "", "Filter by status (Open, Fixed, Muted)")
		c.Flags().StringVar(&findingsMatch, "match", "", "Filter by ID glob (e.g. 'F-00*')")
	}

	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsShowCmd)
	findingsCmd.AddCommand(findingsReopenCmd)
	rootCmd.AddCommand(findingsCmd)
}

func runFindingsList(cmd *cobra.Command, _ []string) error {
	var (
		list []finding.Finding
		err  error
	)
	if findingsRemote {
		c, cerr := findingsClient(cmd)
		if cerr != nil {
			return cerr
		}
		list, err = c.ListFindings(cmd.Context(), findingsMatch, findingsStatus)
	} else {
		list, err = localFindings(findingsMatch, findingsStatus)
	}
	if err != nil {
		return err
	}
	if findingsJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	formatFindingTable(cmd.OutOrStdout(), list)
	return nil
}

func localFindings(match, status string) ([]finding.Finding, error) {
	store := finding.NewStore(finding.DefaultFindings()...)
	list := store.List()
	if match != "" {
		var err error
		if list, err = store.Match(match); err != nil {
			return nil, err
		}
	}
	if status == "" {
		return list, nil
	}
	out := list[:0]
	for _, f := range list {
		if strings.EqualFold(string(f.Status), status) {
			out = append(out, f)
		}
	}
	return out, nil
}

// findingsClient resolves the server address from --server or config.
func findingsClient(cmd *cobra.Command) (*httpapi.Client, error) {
	resolved, _, err := loadAndResolveConfig(cmd, func(o *config.CLIOverrides) {
		if findingsServer != "" {
			addr := findingsServer
			o.Addr = &addr
		}
	})
	if err != nil {
		return nil, err
	}
	return httpapi.NewClient(resolved.Config.Server.Addr), nil
}

// formatFindingTable writes a tabwriter-aligned table of findings to w, most
// severe first.
func formatFindingTable(w io.Writer, list []finding.Finding) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}
	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b finding.Finding) int {
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	})
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tPROVIDER\tSTATUS\tTITLE")
	for _, f := range sorted {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Severity, f.Provider, f.Status, f.Title)
	}
	_ = tw.Flush()
}

func printFinding(w io.Writer, f finding.Finding) {
	fmt.Fprintln(w, styleHeader.Render(f.ID+"  "+f.Title))
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Status\t%s\n", f.Status)
	fmt.Fprintf(tw, "  Severity\t%s\n", f.Severity)
	fmt.Fprintf(tw, "  Provider\t%s\n", f.Provider)
	fmt.Fprintf(tw, "  Resource\t%s\n", f.Resource)
	fmt.Fprintf(tw, "  Frameworks\t%s\n", strings.Join(f.Frameworks, ", "))
	fmt.Fprintf(tw, "  Detected\t%s\n", f.DetectedAt.Format("2006-01-02 15:04 MST"))
	_ = tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, styleSection.Render("Impact"))
	fmt.Fprintf(w, "  %s\n\n", f.Impact)
	fmt.Fprintln(w, styleSection.Render("Fix"))
	fmt.Fprintf(w, "  %s\n", f.Fix)
	if len(f.Annotations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styleSection.Render("History"))
		for _, a := range f.Annotations {
			fmt.Fprintf(w, "  %s  %-18s %s\n", a.At.Format("2006-01-02 15:04:05"), a.Kind, a.Message)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
