package sim

import (
	"context"
	"errors"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/types/geopoint"
	"io"
	"sync"
	"time"
)

var ErrLocationDisabled = errors.New("location services disabled")

// requestBuffer is how many fixes may wait for a slow requester before new ones are dropped.
const requestBuffer = 16

// Provider is a positioning provider fed with PushFix or ReplayNDJSON.
// Fixes are only delivered while the host's location services are on.
type Provider struct {
	host *Host

	mu       sync.Mutex
	requests map[chan geopoint.GeoPoint]location.Request
	last     *geopoint.GeoPoint
}

func newProvider(host *Host) *Provider {
	return &Provider{
		host:     host,
		requests: make(map[chan geopoint.GeoPoint]location.Request),
	}
}

func (p *Provider) RequestLocationUpdates(ctx context.Context, req location.Request) (<-chan geopoint.GeoPoint, error) {
	if enabled, _ := p.host.IsLocationEnabled(); !enabled {
		return nil, ErrLocationDisabled
	}
	ch := make(chan geopoint.GeoPoint, requestBuffer)
	p.mu.Lock()
	p.requests[ch] = req
	p.mu.Unlock()
	p.host.logger.Debug("Location updates requested", "interval", req.MinInterval, "distance", req.MinDistanceMeters)

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.requests, ch)
		close(ch)
		p.mu.Unlock()
	}()
	return ch, nil
}

func (p *Provider) LastKnownLocation() (geopoint.GeoPoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return geopoint.GeoPoint{}, false
	}
	return *p.last, true
}

// PushFix reports a fix to every active request.
// It returns false if location services are off and the fix was discarded.
func (p *Provider) PushFix(fix geopoint.GeoPoint) bool {
	if enabled, _ := p.host.IsLocationEnabled(); !enabled {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = &fix
	for ch := range p.requests {
		select {
		case ch <- fix:
		default:
			p.host.logger.Warn("Dropping fix for slow location request", "fix", fix)
		}
	}
	return true
}

// Requests returns the number of active location requests.
func (p *Provider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// ReplayNDJSON pushes every fix decoded from r, waiting interval between them.
// It returns the number of fixes pushed.
func (p *Provider) ReplayNDJSON(ctx context.Context, r io.Reader, interval time.Duration) (int, error) {
	fixes, errs := geopoint.ScanNDJSON(ctx, r)
	n := 0
	for fix := range fixes {
		if p.PushFix(fix) {
			n++
		}
		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-time.After(interval):
		}
	}
	if err := <-errs; err != nil {
		return n, err
	}
	return n, ctx.Err()
}
