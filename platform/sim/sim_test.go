package sim

import (
	"context"
	"errors"
	"github.com/rotblauer/geopulse/events"
	"github.com/rotblauer/geopulse/geo/act"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/tracker"
	"github.com/rotblauer/geopulse/types/geopoint"
	"strings"
	"testing"
	"time"
)

func TestHost_LocationToggleIsBroadcast(t *testing.T) {
	h := NewHost(HostConfig{Permission: true, LocationEnabled: true})
	changes := make(chan events.ProviderChange, 4)
	sub := h.SubscribeProviderChanges(changes)
	defer sub.Unsubscribe()

	h.SetLocationEnabled(true) // no change, no event
	h.SetLocationEnabled(false)
	select {
	case c := <-changes:
		if c.LocationEnabled == nil || *c.LocationEnabled {
			t.Errorf("expected disabled event, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no provider change")
	}
	select {
	case c := <-changes:
		t.Fatalf("unexpected extra event %+v", c)
	default:
	}

	h.SetPermission(false)
	if ok, _ := h.HasLocationPermission(); ok {
		t.Error("expected permission revoked")
	}
	select {
	case c := <-changes:
		t.Fatalf("permission changes must not be broadcast, got %+v", c)
	default:
	}
}

func TestProvider_DisabledRefusesRequests(t *testing.T) {
	h := NewHost(HostConfig{Permission: true})
	_, err := h.Provider.RequestLocationUpdates(context.Background(), location.Request{})
	if !errors.Is(err, ErrLocationDisabled) {
		t.Fatalf("expected ErrLocationDisabled, got %v", err)
	}
	if h.Provider.PushFix(geopoint.New(1, 2)) {
		t.Error("fix delivered while disabled")
	}
	if _, ok := h.Provider.LastKnownLocation(); ok {
		t.Error("discarded fix became last known")
	}
}

func TestProvider_FanOut(t *testing.T) {
	h := NewHost(HostConfig{Permission: true, LocationEnabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	a, err := h.Provider.RequestLocationUpdates(ctx, location.Request{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Provider.RequestLocationUpdates(ctx, location.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if n := h.Provider.Requests(); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}

	fix := geopoint.New(46.9, -114.0, geopoint.WithAccuracy(4))
	if !h.Provider.PushFix(fix) {
		t.Fatal("fix not delivered")
	}
	for _, ch := range []<-chan geopoint.GeoPoint{a, b} {
		if got := <-ch; !got.Equal(fix) {
			t.Errorf("expected %v, got %v", fix, got)
		}
	}
	if last, ok := h.Provider.LastKnownLocation(); !ok || !last.Equal(fix) {
		t.Errorf("expected last known %v, got %v", fix, last)
	}

	cancel()
	for _, ch := range []<-chan geopoint.GeoPoint{a, b} {
		if _, ok := <-ch; ok {
			t.Error("expected request channel closed")
		}
	}
	if n := h.Provider.Requests(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestProvider_ReplayNDJSON(t *testing.T) {
	h := NewHost(HostConfig{Permission: true, LocationEnabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes, err := h.Provider.RequestLocationUpdates(ctx, location.Request{})
	if err != nil {
		t.Fatal(err)
	}
	input := `{"latitude": 1, "longitude": 2}
{"broken": true}

{"type": "Feature", "geometry": {"type": "Point", "coordinates": [4, 3]}, "properties": {"Accuracy": 6}}
`
	n, err := h.Provider.ReplayNDJSON(ctx, strings.NewReader(input), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 fixes, got %d", n)
	}
	first, second := <-fixes, <-fixes
	if first.Latitude != 1 || second.Latitude != 3 || second.Longitude != 4 {
		t.Errorf("unexpected fixes %v %v", first, second)
	}
}

func TestAccelerometer(t *testing.T) {
	absent := NewAccelerometer(false)
	if _, err := absent.Samples(context.Background()); !errors.Is(err, act.ErrNoAccelerometer) {
		t.Fatalf("expected ErrNoAccelerometer, got %v", err)
	}

	a := NewAccelerometer(true)
	ctx, cancel := context.WithCancel(context.Background())
	samples, err := a.Samples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	a.PushSample(act.Sample{Z: 9.81})
	if s := <-samples; s.Z != 9.81 {
		t.Errorf("unexpected sample %+v", s)
	}
	cancel()
	if _, ok := <-samples; ok {
		t.Error("expected samples closed")
	}
}

func TestDecodeSample(t *testing.T) {
	s, err := DecodeSample([]byte(`{"x": 0.5, "y": -1, "z": 9.8, "time": 1731952467293}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.X != 0.5 || s.Y != -1 || s.Z != 9.8 || s.Time.UnixMilli() != 1731952467293 {
		t.Errorf("unexpected sample %+v", s)
	}

	s, err = DecodeSample([]byte(`{"x": 0, "y": 0, "z": 9.8}`))
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(s.Time) > time.Minute {
		t.Errorf("expected time defaulted to now, got %v", s.Time)
	}

	for _, bad := range []string{`nope`, `{"x": 1, "y": 2}`, `{"x": "1", "y": 2, "z": 3}`} {
		if _, err := DecodeSample([]byte(bad)); !errors.Is(err, ErrDecodeSample) {
			t.Errorf("%s: expected ErrDecodeSample, got %v", bad, err)
		}
	}
}

func TestNotifier(t *testing.T) {
	n := &Notifier{}
	if err := n.StartForeground(params.DefaultNotification()); err != nil {
		t.Fatal(err)
	}
	if shown, ok := n.Showing(); !ok || shown.Title != "GeoPulse" {
		t.Errorf("unexpected notification %+v", shown)
	}
	n.StopForeground()
	if _, ok := n.Showing(); ok {
		t.Error("expected notification removed")
	}

	n.SetDeny(true)
	if err := n.StartForeground(params.DefaultNotification()); !errors.Is(err, tracker.ErrForegroundDenied) {
		t.Errorf("expected ErrForegroundDenied, got %v", err)
	}
	if starts, stops := n.Counts(); starts != 1 || stops != 1 {
		t.Errorf("expected 1 start and 1 stop, got %d %d", starts, stops)
	}
}
