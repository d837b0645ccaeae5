package manager

import (
	"github.com/smallbiznis/usagelens/internal/manager/repository"
	"github.com/smallbiznis/usagelens/internal/manager/service"
	"go.uber.org/fx"
)

var Module = fx.Module("manager.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
