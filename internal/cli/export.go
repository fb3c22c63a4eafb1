package cli

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"reportchain/pkg/chain"
	"reportchain/pkg/store"
)

func newExportCmd() *cobra.Command {
	var (
		format      string
		visibleOnly bool
	)
	cmd := &cobra.Command{
		Use:   "export [database-path] [report-id]",
		Short: "Dump a conversation's actions, newest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported format %q: want json or yaml", format)
			}
			db, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			actions, err := db.GetActions(commandContext(cmd), args[1])
			if err != nil {
				return err
			}
			list := store.Values(actions)
			if visibleOnly {
				policy, err := policyFromFlags(cmd)
				if err != nil {
					return err
				}
				list = chain.FilterForDisplay(list, policy)
			}
			list = chain.SortActions(list, true)

			var b []byte
			if format == "yaml" {
				b, err = yaml.Marshal(list)
			} else {
				b, err = json.MarshalIndent(list, "", "  ")
				b = append(b, '\n')
			}
			if err != nil {
				return fmt.Errorf("encode %s: %w", format, err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&visibleOnly, "visible", false, "only export actions the list UI would show")
	return cmd
}
