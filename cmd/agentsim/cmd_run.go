package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"agentsim/internal/audit/store/sqlite"
	platformmetrics "agentsim/internal/platform/metrics"
	"agentsim/internal/scenario"
	"agentsim/internal/simulation/clock"
	"agentsim/internal/simulation/metrics"
	"agentsim/internal/simulation/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [scenario-id...]",
		Short: "Run scenarios to completion",
		Long: `Run one or more scenarios with an automatic approver.

Simulated time is fast-forwarded between events unless --realtime is set.
Approval requests are resolved by --approval: approve grants everything,
reject denies everything and low-risk grants risk levels 1-2 only.
Several scenarios run in parallel.

Examples:
  agentsim run shopping-basics
  agentsim run --all --approval low-risk
  agentsim run --file ./my-scenario.yaml --actions
  agentsim run bill-pay --realtime --speed 10 --timeout 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			all, _ := cmd.Flags().GetBool("all")
			files, _ := cmd.Flags().GetStringSlice("file")
			auditDB, _ := cmd.Flags().GetString("audit-db")
			showActions, _ := cmd.Flags().GetBool("actions")
			showMetrics, _ := cmd.Flags().GetBool("metrics")

			cfg, log, err := settings(cmd)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			selected, err := selectScenarios(catalog, args, files, all)
			if err != nil {
				return err
			}

			opts := runner.OptionsFromConfig(cfg)
			if cmd.Flags().Changed("speed") {
				speed, _ := cmd.Flags().GetInt("speed")
				opts.Speed = clock.Speed(speed)
			}
			if cmd.Flags().Changed("approval") {
				opts.ApprovalMode, _ = cmd.Flags().GetString("approval")
			}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout, _ = cmd.Flags().GetDuration("timeout")
			}
			opts.Realtime, _ = cmd.Flags().GetBool("realtime")
			if auditDB == "" {
				auditDB = cfg.AuditDBPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			reg := platformmetrics.NewRegistry()
			runOpts := []runner.Option{
				runner.WithLogger(log),
				runner.WithMetrics(metrics.New(reg)),
			}
			if auditDB != "" {
				db, err := sqlite.Open(ctx, auditDB)
				if err != nil {
					return err
				}
				defer db.Close()
				runOpts = append(runOpts, runner.WithActionDB(db))
			}

			r, err := runner.New(opts, runOpts...)
			if err != nil {
				return err
			}
			reports, err := r.RunAll(ctx, selected)
			if err != nil {
				return err
			}

			if jsonOut {
				if !showActions {
					for i := range reports {
						reports[i].Actions = nil
					}
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{"reports": reports})
			}
			out := cmd.OutOrStdout()
			for _, rep := range reports {
				printReport(out, rep, showActions)
			}
			if showMetrics {
				lines, err := platformmetrics.Summarize(reg, "agentsim_")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Metrics:")
				for _, l := range lines {
					fmt.Fprintf(out, "  %s\n", l)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Run every available scenario")
	cmd.Flags().StringSlice("file", nil, "Scenario YAML file to run (repeatable)")
	cmd.Flags().Int("speed", 1, "Simulation speed multiplier (1, 2, 5, 10)")
	cmd.Flags().String("approval", "approve", "How approval requests are resolved (approve, reject, low-risk)")
	cmd.Flags().Bool("realtime", false, "Advance simulated time with the wall clock instead of fast-forwarding")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Maximum wall-clock time per scenario")
	cmd.Flags().String("audit-db", "", "SQLite file to persist agent actions to")
	cmd.Flags().Bool("actions", false, "Print the agent action log")
	cmd.Flags().Bool("metrics", false, "Print a metrics summary after the runs")
	return cmd
}

func selectScenarios(catalog *scenario.Catalog, ids, files []string, all bool) ([]scenario.Scenario, error) {
	var selected []scenario.Scenario
	if all {
		selected = catalog.All()
	}
	for _, id := range ids {
		s, ok := catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (see 'agentsim scenarios')", id)
		}
		selected = append(selected, s)
	}
	for _, path := range files {
		s, err := scenario.LoadFile(path)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	if len(selected) == 0 {
		return nil, errors.New("no scenarios selected: pass scenario ids, --file or --all")
	}
	return selected, nil
}

func printReport(w io.Writer, rep runner.Report, showActions bool) {
	status := string(rep.State)
	if rep.TimedOut {
		status += " (timed out)"
	}
	fmt.Fprintf(w, "%s: %s after %s simulated\n", rep.ScenarioID, status, simDuration(rep.SimulatedMs))
	fmt.Fprintf(w, "  balance    %s (started %s, spent today %s)\n",
		money(rep.Wallet.Balance), money(rep.InitialBalance), money(rep.Wallet.DailySpent))

	c := rep.Counters
	fmt.Fprintf(w, "  decisions  %d events, %d auto-approved, %d rejected, %d transactions\n",
		c.EventsProcessed, c.AutoApproved, c.DecisionsRejected, c.TransactionsCompleted)
	fmt.Fprintf(w, "  approvals  %d requested, %d granted, %d denied\n",
		c.ApprovalsRequested, c.ApprovalsGranted, c.ApprovalsDenied)
	if c.Savings > 0 || c.SubscriptionsCancelled > 0 {
		fmt.Fprintf(w, "  savings    %s monthly, %d subscriptions cancelled\n", money(c.Savings), c.SubscriptionsCancelled)
	}

	done := 0
	for _, o := range rep.Objectives {
		if o.IsCompleted {
			done++
		}
	}
	fmt.Fprintf(w, "  objectives %d/%d (%.0f%% of required)\n", done, len(rep.Objectives), rep.CompletionPercentage)
	for _, o := range rep.Objectives {
		mark := " "
		if o.IsCompleted {
			mark = "x"
		}
		fmt.Fprintf(w, "    [%s] %s\n", mark, o.Description)
	}

	for _, a := range rep.Approvals {
		verdict := "denied"
		if a.Approved {
			verdict = "granted"
		}
		fmt.Fprintf(w, "  approval   %s %s (risk %d): %s\n", money(a.Amount), a.Description, a.RiskLevel, verdict)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "  error      %s\n", e)
	}
	if showActions {
		fmt.Fprintln(w, "  actions:")
		for _, a := range rep.Actions {
			fmt.Fprintf(w, "    %8s  %-8s %s\n", simDuration(a.Timestamp), a.Type, a.Description)
		}
	}
	fmt.Fprintln(w)
}
