package params

// MotionConfig governs the motion filter thresholds.
// It is supplied once, when a pipeline is built.
type MotionConfig struct {
	// MaxAccuracyMeters rejects any fix reporting a worse (larger) horizontal accuracy.
	MaxAccuracyMeters float32

	// MinDisplacementMeters is the least distance from the last accepted fix
	// that counts as movement. A fix's own reported accuracy raises the bar
	// for that fix; displacement smaller than the uncertainty is never trusted.
	MinDisplacementMeters float32

	// MinSpeedMps is the reported speed below which a fix is suspected to be drift.
	// Zero disables the speed corroboration check.
	MinSpeedMps float32

	// SpeedCorroborationMargin is the multiple of the effective displacement threshold
	// under which a slow fix is still considered drift.
	// A fix whose displacement clears threshold*margin is accepted regardless of speed.
	SpeedCorroborationMargin float64
}

func DefaultMotionConfig() *MotionConfig {
	return &MotionConfig{
		MaxAccuracyMeters:        30,
		MinDisplacementMeters:    10,
		MinSpeedMps:              0.6,
		SpeedCorroborationMargin: 1.5,
	}
}
