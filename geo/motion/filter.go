/*
Package motion decides, fix by fix, whether a raw position represents real displacement.
*/
package motion

import (
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/types/geopoint"
	"math"
)

// Filter is a stateful accept/suppress gate for a single stream of fixes.
// Its only memory is the last accepted fix; rejected fixes never influence later decisions.
// A Filter is not safe for concurrent use; give each subscription its own.
type Filter struct {
	config       *params.MotionConfig
	lastAccepted *geopoint.GeoPoint
}

func NewFilter(config *params.MotionConfig) *Filter {
	if config == nil {
		config = params.DefaultMotionConfig()
	}
	return &Filter{config: config}
}

// ShouldEmit returns true if next should be forwarded as movement,
// and false if it is stationary jitter or too inaccurate to trust.
// Checks run in order and the first failing check suppresses:
//  1. accuracy worse than MaxAccuracyMeters
//  2. (no accepted fix yet: accept)
//  3. displacement under max(MinDisplacementMeters, accuracy)
//  4. slow reported speed with only marginal displacement
func (f *Filter) ShouldEmit(next geopoint.GeoPoint) bool {
	if next.HasAccuracy() && next.AccuracyOr(0) > f.config.MaxAccuracyMeters {
		return false
	}

	prev := f.lastAccepted
	if prev == nil {
		f.accept(next)
		return true
	}

	distance := Distance(*prev, next)
	threshold := f.EffectiveThreshold(next)
	if distance < threshold {
		return false
	}

	if f.looksLikeDrift(next, distance, threshold) {
		return false
	}

	f.accept(next)
	return true
}

// EffectiveThreshold is the minimum displacement next must show:
// never less than its own reported uncertainty.
func (f *Filter) EffectiveThreshold(next geopoint.GeoPoint) float64 {
	minDisplacement := f.config.MinDisplacementMeters
	return float64(max(minDisplacement, next.AccuracyOr(minDisplacement)))
}

// looksLikeDrift is a tunable heuristic, not a law: a fix reporting a small
// but nonzero speed that only barely clears the displacement threshold
// is more likely GPS wander than a walk.
// A reported speed of exactly zero is ignored; many providers report 0 for "unknown".
func (f *Filter) looksLikeDrift(next geopoint.GeoPoint, distance, threshold float64) bool {
	if f.config.MinSpeedMps <= 0 || !next.HasSpeed() {
		return false
	}
	speed := next.SpeedOr(0)
	if speed <= 0 || speed >= f.config.MinSpeedMps {
		return false
	}
	margin := math.Max(1, f.config.SpeedCorroborationMargin)
	return distance < threshold*margin
}

func (f *Filter) accept(p geopoint.GeoPoint) {
	f.lastAccepted = &p
}

// Reset forgets the last accepted fix, so that history from a previous
// session cannot veto the first fix of a new one.
func (f *Filter) Reset() {
	f.lastAccepted = nil
}

func (f *Filter) LastAccepted() (geopoint.GeoPoint, bool) {
	if f.lastAccepted == nil {
		return geopoint.GeoPoint{}, false
	}
	return *f.lastAccepted, true
}
