package main

import (
	"context"
	"fmt"
	"os"

	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
	"github.com/smallbiznis/usagelens/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportStart string
	reportEnd   string
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the usage summary as PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		var generator *report.Generator
		return withApp(cmd, func(ctx context.Context) error {
			pdf, filename, err := generator.Summary(ctx, analyticsdomain.RangeRequest{Start: reportStart, End: reportEnd})
			if err != nil {
				return err
			}

			out := reportOut
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(pdf))
			return nil
		}, &generator)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportStart, "start", "", "first day (YYYY-MM-DD), defaults from stored data")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "last day (YYYY-MM-DD), defaults to the latest stored day")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output path")
	rootCmd.AddCommand(reportCmd)
}
