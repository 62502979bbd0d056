package params

import (
	"fmt"
	"time"
)

// PipelineMode selects how raw fixes become moving fixes.
type PipelineMode string

const (
	// ModeFilter passes raw fixes through a motion filter.
	ModeFilter PipelineMode = "filter"

	// ModeGated forwards raw fixes only while the accelerometer says the device is moving.
	// Fixes arriving before a late "moving" signal are dropped.
	ModeGated PipelineMode = "gated"

	// ModeGatedFilter applies the accelerometer gate, then the motion filter.
	ModeGatedFilter PipelineMode = "gated-filter"
)

func ParsePipelineMode(s string) (PipelineMode, error) {
	switch m := PipelineMode(s); m {
	case ModeFilter, ModeGated, ModeGatedFilter:
		return m, nil
	}
	return "", fmt.Errorf("unknown pipeline mode %q (want %s, %s or %s)", s, ModeFilter, ModeGated, ModeGatedFilter)
}

func (m PipelineMode) Gated() bool {
	return m == ModeGated || m == ModeGatedFilter
}

func (m PipelineMode) Filtered() bool {
	return m == ModeFilter || m == ModeGatedFilter
}

type PipelineConfig struct {
	Mode     PipelineMode
	Motion   *MotionConfig
	Movement *MovementConfig

	// MeterInterval is how often raw/accepted fix rates are logged. Zero disables it.
	MeterInterval time.Duration
}

func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Mode:          ModeFilter,
		Motion:        DefaultMotionConfig(),
		Movement:      DefaultMovementConfig(),
		MeterInterval: time.Minute,
	}
}
