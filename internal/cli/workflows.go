package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

var workflowsJSON bool

// workflowsCmd implements "sentinel workflows".
var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflow kinds and their steps",
	Long:  "Show every registered workflow kind with its ordered steps, including [workflows.*] overrides from the config file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := loadValidConfig(cmd, nil)
		if err != nil {
			return err
		}
		registry := workflow.NewRegistry()
		workflow.RegisterBuiltinKinds(registry, resolved.Config.StepOverrides())

		type kindSteps struct {
			Kind  workflow.Kind             `json:"kind"`
			Steps []workflow.StepDefinition `json:"steps"`
		}
		var all []kindSteps
		for _, k := range registry.Kinds() {
			steps, err := registry.Steps(k)
			if err != nil {
				return err
			}
			all = append(all, kindSteps{Kind: k, Steps: steps})
		}

		if workflowsJSON {
			return writeJSON(cmd.OutOrStdout(), all)
		}
		out := cmd.OutOrStdout()
		for i, ks := range all {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, styleSection.Render(fmt.Sprintf("%s (%d steps)", ks.Kind, len(ks.Steps))))
			for j, s := range ks.Steps {
				fmt.Fprintf(out, "  %d. %s\n", j+1, s.Label)
				if s.Description != "" {
					fmt.Fprintf(out, "     %s\n", s.Description)
				}
			}
		}
		return nil
	},
}

func init() {
	workflowsCmd.Flags().BoolVar(&workflowsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(workflowsCmd)
}
