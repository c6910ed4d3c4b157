package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/meridianvc/diligence/agent"
	"github.com/meridianvc/diligence/coherence"
)

// NewReconcileCommand returns the command that runs a single coherence pass
// offline against a JSON snapshot of agent results. Useful for replaying a
// deal's pipeline output while tuning a policy file.
func NewReconcileCommand() *cobra.Command {
	var (
		policyPath string
		applyBack  bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile <results.json>",
		Short: "Run a coherence pass over an agent-result snapshot",
		Long: `Reconcile reads a JSON file mapping agent names to their results, runs
the Tier-3 coherence pass, and prints the reconciliation result as JSON.

With --apply the adjusted scenarios are written back into the snapshot and
the full snapshot is printed instead of the bare result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, args[0], policyPath, applyBack, quiet)
		},
	}

	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "Reconciliation policy YAML (default: calibrated defaults)")
	cmd.Flags().BoolVar(&applyBack, "apply", false, "Inject adjustments into the snapshot and print the snapshot")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-adjustment log lines")
	return cmd
}

func runReconcile(cmd *cobra.Command, resultsPath, policyPath string, applyBack, quiet bool) error {
	data, err := os.ReadFile(resultsPath)
	if err != nil {
		return fmt.Errorf("read results file: %w", err)
	}

	results, err := agent.UnmarshalResultMap(data)
	if err != nil {
		return fmt.Errorf("parse results file: %w", err)
	}

	policy := coherence.DefaultPolicy()
	if policyPath != "" {
		policy, err = coherence.LoadPolicy(policyPath)
		if err != nil {
			return err
		}
	}

	logLevel := slog.LevelInfo
	if quiet {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	runID := uuid.New().String()
	logger.Info("Running coherence pass",
		"run_id", runID,
		"results", resultsPath,
		"agents", len(results))

	engine := coherence.NewEngine(policy, logger)
	result := engine.Reconcile(results)

	var output any = result
	if applyBack {
		if err := coherence.Apply(results, result); err != nil {
			return fmt.Errorf("apply adjustments: %w", err)
		}
		output = results
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
