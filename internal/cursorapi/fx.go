package cursorapi

import "go.uber.org/fx"

var Module = fx.Module("cursorapi",
	fx.Provide(NewClient),
	fx.Provide(NewSyncer),
)
