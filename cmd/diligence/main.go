// Package main provides the diligence binary entry point.
// Diligence runs the Tier-3 coherence pass of the venture due-diligence
// pipeline: it reconciles scenario projections against skepticism and
// contradiction signals before investment-memo synthesis.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/meridianvc/diligence/commands"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "diligence"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Coherence engine for the venture due-diligence pipeline",
		Long: `Diligence reconciles the outputs of the due-diligence agent pipeline.

It consumes each deal's agent-result snapshot, cross-checks the scenario
projection against the devils-advocate skepticism assessment, Tier-1 analyst
scores and contradiction red flags, adjusts implausible probabilities and
return multiples by deterministic rules, and publishes an auditable result.

All pipeline traffic flows over NATS JetStream.`,
	}

	cmd.AddCommand(commands.NewServeCommand())
	cmd.AddCommand(commands.NewReconcileCommand())
	cmd.AddCommand(commands.NewPolicyCommand())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
