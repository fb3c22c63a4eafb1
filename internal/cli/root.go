// Package cli implements reportchainctl, an offline inspector for report
// action databases.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reportchain/pkg/chain"
	"reportchain/pkg/store"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "reportchainctl",
		Short: "Inspect report action databases",
		Long: `reportchainctl reads a reportchain Pebble database without a running
server and prints conversations, contiguous chains and gaps.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringSlice("hidden", nil, "action names to hide from display (comma separated)")

	root.AddCommand(
		newInspectCmd(),
		newChainCmd(),
		newExportCmd(),
		newLastCmd(),
	)
	return root
}

// openReadOnly opens the database and returns it with a close function.
func openReadOnly(path string) (*store.Pebble, error) {
	p, err := store.OpenPebble(path, store.PebbleOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return p, nil
}

func policyFromFlags(cmd *cobra.Command) (chain.VisibilityPolicy, error) {
	hidden, err := cmd.Flags().GetStringSlice("hidden")
	if err != nil {
		return chain.VisibilityPolicy{}, err
	}
	return chain.DefaultVisibilityPolicy().Without(hidden...), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
