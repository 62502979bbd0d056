/*
Package location turns a positioning provider's raw fixes into a stream of
fixes taken while the device is actually moving.
*/

package location

import (
	"context"
	"fmt"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"github.com/rotblauer/geopulse/types/geopoint"
	"log/slog"
	"time"
)

// Request is what the positioning provider is asked for.
type Request struct {
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// Provider is the platform positioning service.
type Provider interface {
	// RequestLocationUpdates streams fixes until ctx is done.
	// The channel is closed when the provider stops delivering.
	RequestLocationUpdates(ctx context.Context, req Request) (<-chan geopoint.GeoPoint, error)

	LastKnownLocation() (geopoint.GeoPoint, bool)
}

const lastKnownKey = "last"

// Source delivers raw, unfiltered fixes from a Provider.
type Source struct {
	provider  Provider
	config    *params.SourceConfig
	lastKnown *ttlcache.Cache[string, geopoint.GeoPoint]
	logger    *slog.Logger
}

func NewSource(provider Provider, config *params.SourceConfig) *Source {
	if config == nil {
		config = params.DefaultSourceConfig()
	}
	return &Source{
		provider: provider,
		config:   config,
		lastKnown: ttlcache.New[string, geopoint.GeoPoint](
			ttlcache.WithTTL[string, geopoint.GeoPoint](config.LastKnownTTL),
			ttlcache.WithDisableTouchOnHit[string, geopoint.GeoPoint]()),
		logger: slog.With("pkg", "location"),
	}
}

// Locations requests updates from the provider and returns every fix it reports.
// Exact repeats of a recent fix are dropped when dedupe is configured.
// Each call is an independent request; the stream ends when ctx is done.
func (s *Source) Locations(ctx context.Context) (<-chan geopoint.GeoPoint, error) {
	req := Request{
		MinInterval:       s.config.MinUpdateInterval,
		MinDistanceMeters: s.config.MinUpdateDistanceMeters,
	}
	raw, err := s.provider.RequestLocationUpdates(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request location updates: %w", err)
	}
	s.logger.Debug("Requested location updates", "interval", req.MinInterval, "distance", req.MinDistanceMeters)

	if s.config.DedupeSize > 0 {
		raw = stream.Filter(ctx, geopoint.NewDedupeLRUFunc(s.config.DedupeSize), raw)
	}
	return stream.Tap(ctx, func(p geopoint.GeoPoint) {
		s.lastKnown.Set(lastKnownKey, p, ttlcache.DefaultTTL)
	}, raw), nil
}

// LastKnownLocation returns the provider's last known fix,
// falling back to the most recent fix this source delivered.
func (s *Source) LastKnownLocation() (geopoint.GeoPoint, bool) {
	if p, ok := s.provider.LastKnownLocation(); ok {
		return p, true
	}
	if item := s.lastKnown.Get(lastKnownKey); item != nil {
		return item.Value(), true
	}
	return geopoint.GeoPoint{}, false
}
