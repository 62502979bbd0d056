package location

import (
	"context"
	"errors"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"github.com/rotblauer/geopulse/types/geopoint"
	"math"
	"testing"
	"time"
)

type fakeProvider struct {
	requests []Request
	feeds    chan chan geopoint.GeoPoint
	last     *geopoint.GeoPoint
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{feeds: make(chan chan geopoint.GeoPoint, 4)}
}

func (f *fakeProvider) RequestLocationUpdates(ctx context.Context, req Request) (<-chan geopoint.GeoPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	feed := make(chan geopoint.GeoPoint)
	f.feeds <- feed
	return feed, nil
}

func (f *fakeProvider) LastKnownLocation() (geopoint.GeoPoint, bool) {
	if f.last == nil {
		return geopoint.GeoPoint{}, false
	}
	return *f.last, true
}

func (f *fakeProvider) nextFeed(t *testing.T) chan geopoint.GeoPoint {
	t.Helper()
	select {
	case feed := <-f.feeds:
		return feed
	case <-time.After(time.Second):
		t.Fatal("no location request")
	}
	return nil
}

type fakeMovement chan bool

func (m fakeMovement) Observe(ctx context.Context) <-chan bool {
	return m
}

func receive(t *testing.T, ch <-chan geopoint.GeoPoint) geopoint.GeoPoint {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fix")
	}
	return geopoint.GeoPoint{}
}

func north(meters float64, ms int64) geopoint.GeoPoint {
	return geopoint.New(meters/6_371_000*180/math.Pi, 0, geopoint.WithTimeMillis(ms))
}

func TestSource_ForwardsEveryFix(t *testing.T) {
	provider := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := NewSource(provider, nil).Locations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	feed := provider.nextFeed(t)
	a := north(0, 1)
	go func() {
		feed <- a
		feed <- a
		close(feed)
	}()
	if got := stream.Collect(ctx, out); len(got) != 2 {
		t.Fatalf("expected the repeat forwarded by default, got %v", got)
	}
}

func TestSource_ForwardsAndDedupes(t *testing.T) {
	provider := newFakeProvider()
	config := params.DefaultSourceConfig()
	config.DedupeSize = 16
	src := NewSource(provider, config)
	if _, ok := src.LastKnownLocation(); ok {
		t.Fatal("expected no last known location")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := src.Locations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := provider.requests[0]; got.MinInterval != time.Second || got.MinDistanceMeters != 0 {
		t.Errorf("unexpected request %+v", got)
	}

	feed := provider.nextFeed(t)
	a, b := north(0, 1), north(0, 2)
	go func() {
		feed <- a
		feed <- a
		feed <- b
		close(feed)
	}()
	got := stream.Collect(ctx, out)
	if len(got) != 2 || !got[0].Equal(a) || !got[1].Equal(b) {
		t.Fatalf("expected [a b], got %v", got)
	}

	last, ok := src.LastKnownLocation()
	if !ok || !last.Equal(b) {
		t.Errorf("expected cached last known %v, got %v", b, last)
	}
	provider.last = &a
	if last, _ := src.LastKnownLocation(); !last.Equal(a) {
		t.Errorf("expected provider last known %v, got %v", a, last)
	}
}

func TestSource_RequestError(t *testing.T) {
	provider := newFakeProvider()
	provider.err = errors.New("provider disabled")
	_, err := NewSource(provider, nil).Locations(context.Background())
	if !errors.Is(err, provider.err) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestRepository_FilterMode(t *testing.T) {
	provider := newFakeProvider()
	repo := NewRepository(NewSource(provider, nil), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := repo.ObserveMovingLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	feed := provider.nextFeed(t)
	go func() {
		feed <- north(0, 1)
		feed <- north(3, 2)  // jitter
		feed <- north(12, 3) // moved
		close(feed)
	}()
	got := stream.Collect(ctx, out)
	if len(got) != 2 || !got[0].Equal(north(0, 1)) || !got[1].Equal(north(12, 3)) {
		t.Fatalf("expected first and moved fixes, got %v", got)
	}
}

func TestRepository_SubscriptionsAreIndependent(t *testing.T) {
	provider := newFakeProvider()
	repo := NewRepository(NewSource(provider, nil), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := repo.ObserveMovingLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	feed1 := provider.nextFeed(t)
	go func() { feed1 <- north(0, 1) }()
	receive(t, first)

	second, err := repo.ObserveMovingLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	feed2 := provider.nextFeed(t)
	// Same position: the first subscription would suppress it, the second has no history.
	go func() { feed2 <- north(1, 2) }()
	if p := receive(t, second); !p.Equal(north(1, 2)) {
		t.Errorf("expected fresh filter to accept, got %v", p)
	}
}

func TestRepository_Gate(t *testing.T) {
	movement := make(fakeMovement)
	repo := NewRepository(nil, movement, &params.PipelineConfig{Mode: params.ModeGated})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan geopoint.GeoPoint)
	out := repo.gate(ctx, in)

	in <- north(0, 1) // before any signal
	movement <- true
	in <- north(0, 2)
	if p := receive(t, out); !p.Equal(north(0, 2)) {
		t.Fatalf("expected fix while moving, got %v", p)
	}
	movement <- false
	in <- north(0, 3)
	movement <- true
	in <- north(0, 4)
	if p := receive(t, out); !p.Equal(north(0, 4)) {
		t.Fatalf("expected fix after resuming, got %v", p)
	}

	// A finished movement stream holds the last state.
	close(movement)
	in <- north(0, 5)
	if p := receive(t, out); !p.Equal(north(0, 5)) {
		t.Fatalf("expected gate to stay open, got %v", p)
	}
	close(in)
	if _, ok := <-out; ok {
		t.Error("expected gate output closed")
	}
}

func TestRepository_GatedWithoutSensorFailsOpen(t *testing.T) {
	provider := newFakeProvider()
	config := params.DefaultPipelineConfig()
	config.Mode = params.ModeGated
	repo := NewRepository(NewSource(provider, &params.SourceConfig{MinUpdateInterval: time.Second}), nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := repo.ObserveMovingLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	feed := provider.nextFeed(t)
	go func() {
		// The open gate races the first fixes; keep reporting until one gets through.
		for i := int64(0); ; i++ {
			select {
			case <-ctx.Done():
				return
			case feed <- north(0, i):
			}
		}
	}()
	receive(t, out)
}
