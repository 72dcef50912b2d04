package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"agentsim/internal/agent/models"
	"agentsim/internal/audit"
	"agentsim/internal/audit/store/memory"
	"agentsim/internal/policy"
	"agentsim/internal/scenario"
	"agentsim/internal/simulation/engine"
	"agentsim/internal/wallet"
)

type evaluation struct {
	ItemID       string              `json:"item_id"`
	Item         string              `json:"item"`
	Decision     models.Decision     `json:"decision"`
	ApprovalType models.ApprovalType `json:"approval_type"`
	Error        string              `json:"error,omitempty"`
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <scenario-id> [item-id...]",
		Short: "Explain how agents would decide on scenario items",
		Long: `Run scenario items through the decision pipeline without committing anything.

Each item is evaluated against the scenario's starting wallet by its agent's
policy, the guardrail mandates and any custom rules. The decision tree shows
every check that was made. With no item ids every item in the scenario is
evaluated.

Examples:
  agentsim evaluate shopping-basics
  agentsim evaluate bill-pay electricity --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			hideTree, _ := cmd.Flags().GetBool("no-tree")

			cfg, log, err := settings(cmd)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			s, ok := catalog.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown scenario %q (see 'agentsim scenarios')", args[0])
			}
			items, err := pickItems(s, args[1:])
			if err != nil {
				return err
			}

			actions := audit.NewPublisher(memory.NewInMemoryStore(), audit.WithLogger(log))
			defer actions.Close()
			eng, err := engine.New(engine.Deps{
				Ledger:  wallet.NewLedger(),
				Actions: actions,
			}, engine.WithLogger(log))
			if err != nil {
				return err
			}
			if err := eng.Initialize(cmd.Context(), s); err != nil {
				return err
			}

			results := make([]evaluation, 0, len(items))
			for _, item := range items {
				d, settlement, err := eng.Preview(item)
				ev := evaluation{ItemID: item.ItemID(), Item: describe(item, settlement), Decision: d, ApprovalType: settlement.ApprovalType}
				if err != nil {
					ev.Error = err.Error()
				}
				results = append(results, ev)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"scenario_id": s.ID, "evaluations": results})
			}
			out := cmd.OutOrStdout()
			for _, ev := range results {
				printEvaluation(out, ev, !hideTree)
			}
			return nil
		},
	}
	cmd.Flags().Bool("no-tree", false, "Omit decision trees from text output")
	return cmd
}

func pickItems(s scenario.Scenario, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return s.Items(), nil
	}
	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := s.Item(id)
		if !ok {
			return nil, fmt.Errorf("scenario %s has no item %q", s.ID, id)
		}
		items = append(items, item)
	}
	return items, nil
}

func describe(item models.Item, s policy.Settlement) string {
	if s.Description != "" {
		return s.Description
	}
	return item.ItemID()
}

func printEvaluation(w io.Writer, ev evaluation, withTree bool) {
	if ev.Error != "" {
		fmt.Fprintf(w, "%s: error: %s\n\n", ev.ItemID, ev.Error)
		return
	}
	d := ev.Decision
	fmt.Fprintf(w, "%s (%s)\n", ev.Item, ev.ItemID)
	fmt.Fprintf(w, "  decision  %s, risk %d", d.Action, d.RiskLevel)
	if d.MovesMoney() {
		fmt.Fprintf(w, ", %s %s", d.Flow, money(d.Amount))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  reason    %s\n", d.Reason)
	if withTree && d.Tree != nil {
		d.Tree.Walk(func(n *models.DecisionNode, depth int) {
			mark := ""
			if n.Result != "" {
				mark = " [" + string(n.Result) + "]"
			}
			fmt.Fprintf(w, "  %s- %s%s\n", strings.Repeat("  ", depth), n.Label, mark)
		})
	}
	fmt.Fprintln(w)
}
