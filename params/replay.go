package params

// ReplayConfig sizes a replaying broadcast stream.
type ReplayConfig struct {
	// Replay is how many of the latest values a new subscriber receives immediately.
	Replay int
	// Buffer is how many further values may be pending per subscriber
	// before the oldest pending value is dropped.
	Buffer int
}

func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Replay: 1,
		Buffer: 8,
	}
}
