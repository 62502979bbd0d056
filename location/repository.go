package location

import (
	"context"
	"github.com/rotblauer/geopulse/geo/act"
	"github.com/rotblauer/geopulse/geo/motion"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"github.com/rotblauer/geopulse/types/geopoint"
	"log/slog"
)

// RawSource is a stream of unfiltered fixes, eg. a *Source.
type RawSource interface {
	Locations(ctx context.Context) (<-chan geopoint.GeoPoint, error)
}

// MovementObserver reports moving (true) and stationary (false) transitions, eg. an *act.Detector.
type MovementObserver interface {
	Observe(ctx context.Context) <-chan bool
}

type Repository struct {
	source   RawSource
	movement MovementObserver
	config   *params.PipelineConfig
	logger   *slog.Logger
}

// NewRepository builds the moving-location pipeline.
// movement is only consulted by gated modes; a nil observer there
// behaves like a device without an accelerometer, which gates open.
func NewRepository(source RawSource, movement MovementObserver, config *params.PipelineConfig) *Repository {
	if config == nil {
		config = params.DefaultPipelineConfig()
	}
	if movement == nil {
		movement = act.NewDetector(nil, config.Movement)
	}
	return &Repository{
		source:   source,
		movement: movement,
		config:   config,
		logger:   slog.With("pkg", "location", "mode", config.Mode),
	}
}

// ObserveMovingLocations subscribes to the raw source and returns the fixes
// that pass the configured gate and/or motion filter.
// Every call owns its own filter and gate state.
// The channel is closed when ctx is done or the raw source ends.
func (r *Repository) ObserveMovingLocations(ctx context.Context) (<-chan geopoint.GeoPoint, error) {
	raw, err := r.source.Locations(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Observing moving locations")

	meter := stream.NewTickMeter("moving-locations", r.config.MeterInterval)
	points := stream.Tap(ctx, func(geopoint.GeoPoint) { meter.MarkIn(1) }, raw)

	if r.config.Mode.Gated() {
		points = r.gate(ctx, points)
	}
	if r.config.Mode.Filtered() {
		filter := motion.NewFilter(r.config.Motion)
		points = stream.Filter(ctx, filter.ShouldEmit, points)
	}

	out := make(chan geopoint.GeoPoint)
	go func() {
		defer close(out)
		defer meter.Stop()
		for p := range points {
			meter.MarkOut(1)
			select {
			case <-ctx.Done():
				return
			case out <- p:
			}
		}
	}()
	return out, nil
}

// gate forwards fixes only while the latest movement signal is true.
// Movement and fixes are consumed concurrently; fixes that arrive before
// the first movement signal are dropped.
func (r *Repository) gate(ctx context.Context, in <-chan geopoint.GeoPoint) <-chan geopoint.GeoPoint {
	out := make(chan geopoint.GeoPoint)
	go func() {
		defer close(out)
		gateCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		movement := r.movement.Observe(gateCtx)
		moving := false
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-movement:
				if !ok {
					// Sensor stream ended; hold the last known state.
					movement = nil
					continue
				}
				moving = m
				r.logger.Debug("Movement gate", "state", act.MotionState(m))
			case p, ok := <-in:
				if !ok {
					return
				}
				if !moving {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- p:
				}
			}
		}
	}()
	return out
}
