package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"reportchain/pkg/chain"
	"reportchain/pkg/models"
	"reportchain/pkg/store"
)

func newChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain [database-path] [report-id] [anchor-action-id]",
		Short: "Print the contiguous run of actions around an anchor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			policy, err := policyFromFlags(cmd)
			if err != nil {
				return err
			}
			run, gapID, err := chain.NewReader(db, policy).Chain(commandContext(cmd), args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(run) == 0 {
				fmt.Fprintf(out, "action %s is not loaded for report %s\n", args[2], args[1])
				return nil
			}
			for _, a := range run {
				printAction(out, a)
			}
			if gapID != "" {
				fmt.Fprintf(out, "gap before: %s\n", gapID)
			}
			return nil
		},
	}
}

func newLastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last [database-path] [report-id]",
		Short: "Print the last action the conversation list would show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			policy, err := policyFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			last, ok, err := chain.NewReader(db, policy).GetLastVisibleAction(ctx, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "no visible actions")
			} else {
				printAction(out, last)
			}

			actions, err := db.GetActions(ctx, args[1])
			if err != nil {
				return err
			}
			if closed, ok := chain.LastClosedAction(store.Values(actions)); ok {
				fmt.Fprintf(out, "closed at %s\n", closed.Created)
			}
			return nil
		},
	}
}

func printAction(w io.Writer, a models.ReportAction) {
	line := fmt.Sprintf("%s\t%s\t%s", a.ReportActionID, a.Created, a.ActionName)
	if text := a.Text(); text != "" {
		line += "\t" + text
	}
	fmt.Fprintln(w, line)
}
