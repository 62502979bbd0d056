package controller

import (
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/geopulse/common"
	"github.com/rotblauer/geopulse/types/geopoint"
	"time"
)

// Summary describes a path.
type Summary struct {
	Points       int           `json:"points"`
	LengthMeters float64       `json:"lengthMeters"`
	Duration     time.Duration `json:"duration"`
	MeanSpeedMps float64       `json:"meanSpeedMps"`
	MaxSpeedMps  float64       `json:"maxSpeedMps"`
}

// Summarize measures a path. Speeds are the reported ones; fixes without speed are skipped.
func Summarize(path []geopoint.GeoPoint) Summary {
	s := Summary{Points: len(path)}
	if len(path) < 1 {
		return s
	}
	s.LengthMeters = common.DecimalToFixed(geo.Length(geopoint.GeoPoints(path).LineString()), 1)

	var first, last time.Time
	speeds := stats.Float64Data{}
	for _, p := range path {
		if t, ok := p.Time(); ok {
			if first.IsZero() || t.Before(first) {
				first = t
			}
			if t.After(last) {
				last = t
			}
		}
		if p.HasSpeed() {
			speeds = append(speeds, float64(*p.Speed))
		}
	}
	if !first.IsZero() {
		s.Duration = last.Sub(first)
	}
	if len(speeds) > 0 {
		mean, _ := stats.Mean(speeds)
		max, _ := stats.Max(speeds)
		s.MeanSpeedMps = common.DecimalToFixed(mean, 2)
		s.MaxSpeedMps = common.DecimalToFixed(max, 2)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%s points, %s, over %s, speed mean %.2f m/s max %.2f m/s",
		humanize.Comma(int64(s.Points)),
		humanize.SIWithDigits(s.LengthMeters, 2, "m"),
		s.Duration.Round(time.Second),
		s.MeanSpeedMps, s.MaxSpeedMps)
}
