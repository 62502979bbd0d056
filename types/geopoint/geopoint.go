package geopoint

import (
	"fmt"
	"github.com/paulmach/orb"
	"time"
)

// GeoPoint is a single position fix.
// The optional attributes (accuracy, speed, time) are nil when the
// provider did not report them. GeoPoints are values; nothing in this
// module writes through the optional pointers once a point is built.
type GeoPoint struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   *float32 `json:"accuracy,omitempty"` // horizontal, in meters
	Speed      *float32 `json:"speed,omitempty"`    // in m/s
	TimeMillis *int64   `json:"time,omitempty"`     // unix millis
}

type Option func(*GeoPoint)

// New creates a GeoPoint at lat, lon with any optional attributes applied.
func New(lat, lon float64, opts ...Option) GeoPoint {
	p := GeoPoint{Latitude: lat, Longitude: lon}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func WithAccuracy(meters float32) Option {
	return func(p *GeoPoint) {
		p.Accuracy = &meters
	}
}

func WithSpeed(mps float32) Option {
	return func(p *GeoPoint) {
		p.Speed = &mps
	}
}

func WithTimeMillis(ms int64) Option {
	return func(p *GeoPoint) {
		p.TimeMillis = &ms
	}
}

func WithTime(t time.Time) Option {
	return WithTimeMillis(t.UnixMilli())
}

func (p GeoPoint) HasAccuracy() bool {
	return p.Accuracy != nil
}

// AccuracyOr returns the reported accuracy, or def if none was reported.
func (p GeoPoint) AccuracyOr(def float32) float32 {
	if p.Accuracy == nil {
		return def
	}
	return *p.Accuracy
}

func (p GeoPoint) HasSpeed() bool {
	return p.Speed != nil
}

// SpeedOr returns the reported speed, or def if none was reported.
func (p GeoPoint) SpeedOr(def float32) float32 {
	if p.Speed == nil {
		return def
	}
	return *p.Speed
}

// Time returns the fix time, if the provider reported one.
func (p GeoPoint) Time() (time.Time, bool) {
	if p.TimeMillis == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*p.TimeMillis), true
}

// Point returns the orb (lon, lat) point.
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// Equal compares coordinates and all optional attributes by value.
func (p GeoPoint) Equal(other GeoPoint) bool {
	return p.Latitude == other.Latitude &&
		p.Longitude == other.Longitude &&
		eqPtr(p.Accuracy, other.Accuracy) &&
		eqPtr(p.Speed, other.Speed) &&
		eqPtr(p.TimeMillis, other.TimeMillis)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (p GeoPoint) String() string {
	s := fmt.Sprintf("(%.6f,%.6f)", p.Latitude, p.Longitude)
	if p.Accuracy != nil {
		s += fmt.Sprintf(" acc=%.1fm", *p.Accuracy)
	}
	if p.Speed != nil {
		s += fmt.Sprintf(" speed=%.2fm/s", *p.Speed)
	}
	if t, ok := p.Time(); ok {
		s += " t=" + t.UTC().Format(time.RFC3339)
	}
	return s
}

type GeoPoints []GeoPoint

// LineString returns the points as an orb.LineString, in order.
func (ps GeoPoints) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(ps))
	for _, p := range ps {
		ls = append(ls, p.Point())
	}
	return ls
}
