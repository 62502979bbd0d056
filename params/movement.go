package params

import "time"

// MovementConfig tunes the accelerometer movement detector.
// Thresholds are in accelerometer units (m/s^2 on Android).
type MovementConfig struct {
	// GravityAlpha is the low-pass weight of the previous gravity estimate.
	GravityAlpha float64

	// MoveThreshold is the linear acceleration magnitude that counts as a movement hit.
	MoveThreshold float64

	// MoveCountTrigger is the number of consecutive hits before the detector flips to moving.
	MoveCountTrigger int

	// StillTimeout is how long after the last sustained hit the detector flips back to stationary.
	StillTimeout time.Duration
}

func DefaultMovementConfig() *MovementConfig {
	return &MovementConfig{
		GravityAlpha:     0.8,
		MoveThreshold:    0.35,
		MoveCountTrigger: 5,
		StillTimeout:     4000 * time.Millisecond,
	}
}
