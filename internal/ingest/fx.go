package ingest

import (
	"github.com/smallbiznis/usagelens/internal/ingest/committer"
	"github.com/smallbiznis/usagelens/internal/ingest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest.service",
	fx.Provide(committer.New),
	fx.Provide(service.New),
)
