package main

import (
	"context"

	"github.com/smallbiznis/usagelens/internal/cursorapi"
	"github.com/spf13/cobra"
)

var (
	syncStart string
	syncEnd   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull daily usage from the vendor API",
	Long: `Fetch team daily usage from the vendor API and ingest it with source
api_sync. Without flags the window runs from CURSOR_START_DATE_EPOCH to now.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var syncer *cursorapi.Syncer
		return withApp(cmd, func(ctx context.Context) error {
			res, err := syncer.Sync(ctx, cursorapi.SyncRequest{Start: syncStart, End: syncEnd})
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		}, &syncer)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncStart, "start", "", "first day to fetch (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncEnd, "end", "", "last day to fetch (YYYY-MM-DD)")
	rootCmd.AddCommand(syncCmd)
}
