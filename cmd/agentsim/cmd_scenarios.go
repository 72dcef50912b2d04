package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agentsim/internal/scenario"
)

type scenarioSummary struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type"`
	Difficulty     scenario.Difficulty `json:"difficulty"`
	InitialBalance float64             `json:"initial_balance"`
	Items          int                 `json:"items"`
	Objectives     int                 `json:"objectives"`
	Description    string              `json:"description"`
}

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		Long: `List the built-in scenarios and any loaded from --scenarios.

Examples:
  agentsim scenarios
  agentsim scenarios --difficulty beginner
  agentsim scenarios --scenarios ./my-scenarios --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			difficulty, _ := cmd.Flags().GetString("difficulty")

			cfg, _, err := settings(cmd)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			list := catalog.All()
			if difficulty != "" {
				list = catalog.ByDifficulty(scenario.Difficulty(difficulty))
			}
			summaries := make([]scenarioSummary, 0, len(list))
			for _, s := range list {
				summaries = append(summaries, scenarioSummary{
					ID:             s.ID,
					Name:           s.Name,
					Type:           string(s.Type),
					Difficulty:     s.Difficulty,
					InitialBalance: s.InitialBalance,
					Items:          len(s.Items()),
					Objectives:     len(s.Objectives),
					Description:    s.Description,
				})
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"scenarios": summaries})
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tDIFFICULTY\tBALANCE\tITEMS\tNAME")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.Type, s.Difficulty, money(s.InitialBalance), s.Items, s.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("difficulty", "", "Only list scenarios of this difficulty (beginner, intermediate, advanced)")
	return cmd
}
