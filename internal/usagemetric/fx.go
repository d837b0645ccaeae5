package usagemetric

import (
	"github.com/smallbiznis/usagelens/internal/usagemetric/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("usagemetric.repository",
	fx.Provide(repository.Provide),
)
