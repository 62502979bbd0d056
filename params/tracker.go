package params

// Notification is what the host shows while the tracker runs in the foreground.
type Notification struct {
	ID          int
	ChannelID   string
	ChannelName string
	Title       string
	Text        string
	Ongoing     bool
}

func DefaultNotification() Notification {
	return Notification{
		ID:          1001,
		ChannelID:   "geopulse_location_channel",
		ChannelName: "Location Tracking",
		Title:       "GeoPulse",
		Text:        "Tracking location while moving…",
		Ongoing:     true,
	}
}

type TrackerConfig struct {
	Output       ReplayConfig
	Notification Notification
}

func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		Output:       DefaultReplayConfig(),
		Notification: DefaultNotification(),
	}
}
