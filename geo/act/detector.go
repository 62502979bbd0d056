/*
Package act decides whether a device is physically moving from its accelerometer.
*/

package act

import (
	"context"
	"errors"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"log/slog"
	"math"
	"time"
)

var ErrNoAccelerometer = errors.New("no accelerometer")

// Sample is one accelerometer reading, gravity included.
type Sample struct {
	X, Y, Z float64
	Time    time.Time
}

// Accelerometer is a source of raw acceleration samples.
// Samples returns ErrNoAccelerometer (wrapped or not) when the device has no sensor.
type Accelerometer interface {
	Samples(ctx context.Context) (<-chan Sample, error)
}

type MotionState bool

const (
	Stationary MotionState = false
	Moving     MotionState = true
)

func (s MotionState) String() string {
	if s {
		return "moving"
	}
	return "stationary"
}

type Detector struct {
	sensor Accelerometer
	config *params.MovementConfig
	logger *slog.Logger
}

// NewDetector returns a detector reading from sensor. A nil sensor behaves as a missing one.
func NewDetector(sensor Accelerometer, config *params.MovementConfig) *Detector {
	if config == nil {
		config = params.DefaultMovementConfig()
	}
	return &Detector{
		sensor: sensor,
		config: config,
		logger: slog.With("pkg", "act"),
	}
}

// Observe starts a fresh observation and returns its moving/stationary transitions.
// Nothing is read from the sensor until Observe is called, and every call
// gets its own state. Consecutive values always differ.
// Without a sensor the stream fails open: it emits true once and then
// nothing more until ctx is done.
// The channel is closed when ctx is done or the sensor stream ends.
func (d *Detector) Observe(ctx context.Context) <-chan bool {
	var samples <-chan Sample
	var err error
	if d.sensor == nil {
		err = ErrNoAccelerometer
	} else {
		samples, err = d.sensor.Samples(ctx)
	}
	if err != nil {
		d.logger.Warn("Accelerometer unavailable, assuming movement", "error", err)
		return failOpen(ctx)
	}

	out := make(chan bool)
	go func() {
		defer close(out)
		state := newMovementState(d.config)
		for sample := range samples {
			moving, changed := state.observe(sample)
			if !changed {
				continue
			}
			d.logger.Debug("Motion state changed", "state", MotionState(moving), "at", sample.Time)
			select {
			case <-ctx.Done():
				return
			case out <- moving:
			}
		}
	}()
	return stream.DistinctUntilChanged(ctx, out)
}

func failOpen(ctx context.Context) <-chan bool {
	out := make(chan bool)
	go func() {
		defer close(out)
		select {
		case <-ctx.Done():
			return
		case out <- true:
		}
		<-ctx.Done()
	}()
	return out
}

// movementState is the gravity low-pass filter plus the hit-count and
// timeout hysteresis. It is owned by a single observation.
type movementState struct {
	config *params.MovementConfig

	seeded       bool
	gravity      [3]float64
	hits         int
	lastMovement time.Time
	moving       bool
}

func newMovementState(config *params.MovementConfig) *movementState {
	return &movementState{config: config}
}

// observe folds in one sample and returns the moving flag,
// and whether it changed with this sample.
func (s *movementState) observe(sample Sample) (moving, changed bool) {
	raw := [3]float64{sample.X, sample.Y, sample.Z}
	if !s.seeded {
		// The first sample only seeds gravity; it is never counted as movement.
		s.gravity = raw
		s.seeded = true
		return s.moving, false
	}

	alpha := s.config.GravityAlpha
	var sum float64
	for i := range raw {
		s.gravity[i] = alpha*s.gravity[i] + (1-alpha)*raw[i]
		linear := raw[i] - s.gravity[i]
		sum += linear * linear
	}
	magnitude := math.Sqrt(sum)

	was := s.moving
	if magnitude > s.config.MoveThreshold {
		s.hits++
		if s.hits >= s.config.MoveCountTrigger {
			s.lastMovement = sample.Time
			s.moving = true
		}
	} else {
		s.hits = 0
		// Only a quiet sample can end movement.
		if s.moving && sample.Time.Sub(s.lastMovement) > s.config.StillTimeout {
			s.moving = false
		}
	}
	return s.moving, s.moving != was
}
