package upload

import (
	"github.com/smallbiznis/usagelens/internal/upload/repository"
	"github.com/smallbiznis/usagelens/internal/upload/service"
	"go.uber.org/fx"
)

var Module = fx.Module("upload.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
