package main

import (
	"context"
	"fmt"
	"os"

	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	"github.com/spf13/cobra"
)

var managersCmd = &cobra.Command{
	Use:   "managers",
	Short: "Manage the reporting hierarchy",
}

var managersImportCmd = &cobra.Command{
	Use:   "import <roster.csv>",
	Short: "Replace the roster with a CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var managers managerdomain.Service
		return withApp(cmd, func(ctx context.Context) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := managers.Import(ctx, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d (%d duplicates, %d rejected)\n", res.Imported, res.Duplicates, len(res.Rejected))
			for _, row := range res.Rejected {
				fmt.Fprintf(out, "  line %d %s: %s\n", row.Line, row.Email, row.Reason)
			}
			return nil
		}, &managers)
	},
}

func init() {
	managersCmd.AddCommand(managersImportCmd)
	rootCmd.AddCommand(managersCmd)
}
