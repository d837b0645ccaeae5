package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagelens/internal/analytics"
	"github.com/smallbiznis/usagelens/internal/archive"
	"github.com/smallbiznis/usagelens/internal/audit"
	"github.com/smallbiznis/usagelens/internal/auth"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
	"github.com/smallbiznis/usagelens/internal/ingest"
	"github.com/smallbiznis/usagelens/internal/manager"
	"github.com/smallbiznis/usagelens/internal/migration"
	"github.com/smallbiznis/usagelens/internal/observability"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	"github.com/smallbiznis/usagelens/internal/report"
	"github.com/smallbiznis/usagelens/internal/server"
	"github.com/smallbiznis/usagelens/internal/upload"
	"github.com/smallbiznis/usagelens/internal/usagemetric"
	"github.com/smallbiznis/usagelens/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		archive.Module,

		// Functional Domains
		audit.Module,
		auth.Module,
		authorization.Module,
		usagemetric.Module,
		upload.Module,
		manager.Module,
		ingest.Module,
		analytics.Module,
		report.Module,
		cursorapi.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
