package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so ingestion timestamps can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(System),
)
