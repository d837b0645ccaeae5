package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagelens/internal/analytics"
	"github.com/smallbiznis/usagelens/internal/archive"
	"github.com/smallbiznis/usagelens/internal/audit"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
	"github.com/smallbiznis/usagelens/internal/ingest"
	"github.com/smallbiznis/usagelens/internal/manager"
	"github.com/smallbiznis/usagelens/internal/migration"
	"github.com/smallbiznis/usagelens/internal/observability"
	obsctx "github.com/smallbiznis/usagelens/internal/observability/context"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	"github.com/smallbiznis/usagelens/internal/report"
	"github.com/smallbiznis/usagelens/internal/upload"
	"github.com/smallbiznis/usagelens/internal/usagemetric"
	"github.com/smallbiznis/usagelens/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	cliActorID   = "usagelensctl"
	startTimeout = 30 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "usagelensctl",
	Short: "Operate a usagelens database from the shell",
	Long: `usagelensctl runs the same ingestion, roster and reporting code as the
server against the database configured through the environment.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// coreModules is the server graph minus HTTP and login.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		archive.Module,
		audit.Module,
		usagemetric.Module,
		upload.Module,
		manager.Module,
		ingest.Module,
		analytics.Module,
		report.Module,
		cursorapi.Module,
	)
}

// withApp starts the graph, fills targets and hands control to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), startTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	ctx := obsctx.WithActor(cmd.Context(), string(auditdomain.ActorTypeSystem), cliActorID)
	return fn(ctx)
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
