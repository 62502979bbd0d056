package params

import "time"

type SourceConfig struct {
	// MinUpdateInterval is requested from the positioning provider.
	MinUpdateInterval time.Duration

	// MinUpdateDistanceMeters is requested from the positioning provider.
	// It should stay 0: all displacement filtering belongs to the motion filter.
	MinUpdateDistanceMeters float64

	// LastKnownTTL bounds how old a remembered fix may be when the
	// provider has no last known location of its own.
	LastKnownTTL time.Duration

	// DedupeSize is the number of recent distinct fixes remembered to drop exact repeats.
	// Zero, the default, disables dedupe: every fix the provider reports is forwarded.
	DedupeSize int
}

func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		MinUpdateInterval:       1000 * time.Millisecond,
		MinUpdateDistanceMeters: 0,
		LastKnownTTL:            7 * 24 * time.Hour,
		DedupeSize:              0,
	}
}
