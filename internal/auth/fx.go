package auth

import (
	"github.com/smallbiznis/usagelens/internal/auth/service"
	"github.com/smallbiznis/usagelens/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	session.Module,
	fx.Provide(service.New),
)
