package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reportchain/internal/gapscan"
	"reportchain/pkg/store/keys"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [database-path]",
		Short: "List conversations with action counts and gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := commandContext(cmd)
			ids, err := db.Conversations(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database: %s\n\n", db.Path())
			total, gaps := 0, 0
			for _, id := range ids {
				rep, err := gapscan.Scan(ctx, db, id)
				if err != nil {
					return err
				}
				version, err := db.Version(id)
				if err != nil {
					return err
				}
				total += rep.Actions
				line := fmt.Sprintf("%s\tactions=%d\tsegments=%d\tversion=%d", id, rep.Actions, rep.Segments, version)
				if rep.HasGap() {
					gaps++
					line += "\tmissing=" + strings.Join(rep.Missing, ",")
				}
				fmt.Fprintln(out, line)
			}
			keyCount, err := db.KeyCount(keys.ReportPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s conversations, %s actions (%s keys), %s with gaps\n",
				humanize.Comma(int64(len(ids))), humanize.Comma(int64(total)), humanize.Comma(int64(keyCount)), humanize.Comma(int64(gaps)))
			return nil
		},
	}
}
