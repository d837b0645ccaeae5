package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Ingest a usage CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			ingestSvc ingestdomain.Service
			auditSvc  auditdomain.Service
		)
		return withApp(cmd, func(ctx context.Context) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			filename := filepath.Base(args[0])
			res, err := ingestSvc.Ingest(ctx, ingestdomain.Request{
				Filename: filename,
				Source:   uploaddomain.SourceCLI,
				Body:     f,
			})

			metadata := map[string]any{"filename": filename}
			var targetID *string
			if res != nil {
				targetID = &res.UploadID
				metadata["status"] = string(res.Status)
			}
			if err != nil {
				metadata["error"] = err.Error()
			}
			_ = auditSvc.AuditLog(ctx, auditdomain.ActionUploadCreate, "upload", targetID, metadata)

			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		}, &ingestSvc, &auditSvc)
	},
}

func printResult(cmd *cobra.Command, res *ingestdomain.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "upload %s: %s\n", res.UploadID, res.Status)
	fmt.Fprintf(out, "  new:        %d\n", res.New)
	fmt.Fprintf(out, "  updated:    %d\n", res.Updated)
	fmt.Fprintf(out, "  unchanged:  %d\n", res.Unchanged)
	fmt.Fprintf(out, "  duplicates: %d\n", res.Duplicates)
	fmt.Fprintf(out, "  invalid:    %d\n", len(res.Invalid))
	for _, row := range res.Invalid {
		fmt.Fprintf(out, "    line %d: %s\n", row.Line, row.Reason)
	}
}

func init() {
	rootCmd.AddCommand(importCmd)
}
