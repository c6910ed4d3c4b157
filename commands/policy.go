package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/meridianvc/diligence/coherence"
)

// NewPolicyCommand returns the command that prints the effective
// reconciliation policy, optionally after merging a policy file over the
// calibrated defaults. Useful for verifying what a partial override file
// actually resolves to.
func NewPolicyCommand() *cobra.Command {
	var policyPath string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective reconciliation policy as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := coherence.DefaultPolicy()
			if policyPath != "" {
				var err error
				policy, err = coherence.LoadPolicy(policyPath)
				if err != nil {
					return err
				}
			}

			data, err := yaml.Marshal(policy)
			if err != nil {
				return fmt.Errorf("marshal policy: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "Policy YAML to merge over the defaults")
	return cmd
}
