package params

import "time"

type ControllerConfig struct {
	// PollInterval is how often permission and location-enabled state are re-read.
	// Revocations and provider toggles are not reliably delivered as events,
	// so polling is the source of truth. Zero disables polling.
	PollInterval time.Duration

	// StateBuffer is how many state snapshots may be pending per observer
	// before the oldest is dropped. Observers always get the latest.
	StateBuffer int
}

func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		PollInterval: 1000 * time.Millisecond,
		StateBuffer:  8,
	}
}
