package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"agentsim/internal/platform/config"
	"agentsim/internal/platform/logger"
	"agentsim/internal/scenario"
)

var version = "0.1.0-dev"

// main only wires the command tree. Simulation logic lives in internal packages.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentsim",
		Short: "Financial agent policy simulator",
		Long: `agentsim plays scripted scenarios against autonomous financial agents.

Agents shop, pay bills, manage subscriptions and invest under spending
limits, guardrail mandates and custom rules. Decisions that need a human
pause the simulation until they are approved or rejected.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().String("scenarios", "", "Directory of extra scenario YAML files")

	rootCmd.AddCommand(
		newVersionCmd(),
		newScenariosCmd(),
		newRunCmd(),
		newEvaluateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "agentsim version %s\n", version)
			return nil
		},
	}
}

// settings reads the environment and applies the global flags on top.
func settings(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if v, _ := cmd.Flags().GetString("scenarios"); v != "" {
		cfg.ScenarioDir = v
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// loadCatalog returns the built-in scenarios plus any found in cfg.ScenarioDir.
func loadCatalog(cfg config.Config) (*scenario.Catalog, error) {
	catalog, err := scenario.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load built-in scenarios: %w", err)
	}
	if cfg.ScenarioDir == "" {
		return catalog, nil
	}
	extra, err := scenario.LoadDir(cfg.ScenarioDir)
	if err != nil {
		return nil, err
	}
	return catalog.Merge(extra), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
