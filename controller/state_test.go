package controller

import (
	"encoding/json"
	"github.com/rotblauer/geopulse/types/geopoint"
	"math"
	"strings"
	"testing"
	"time"
)

func TestTrackingState_Phase(t *testing.T) {
	cases := []struct {
		state TrackingState
		phase Phase
	}{
		{TrackingState{}, PermissionDenied},
		{TrackingState{HasLocationPermission: true}, GpsDisabled},
		{TrackingState{HasLocationPermission: true, IsGpsEnabled: true}, Idle},
		{TrackingState{HasLocationPermission: true, IsGpsEnabled: true, WantsTracking: true, IsServiceRunning: true}, Tracking},
		{TrackingState{HasLocationPermission: true, WantsTracking: true}, PausedForPrecondition},
		{TrackingState{IsGpsEnabled: true, WantsTracking: true}, PausedForPrecondition},
	}
	for _, c := range cases {
		if got := c.state.Phase(); got != c.phase {
			t.Errorf("%+v: expected %s, got %s", c.state, c.phase, got)
		}
		if c.state.StatusMessage() == "" {
			t.Errorf("%+v: empty status message", c.state)
		}
	}
	if got := (TrackingState{HasLocationPermission: true, WantsTracking: true}).StatusMessage(); !strings.Contains(got, "location services") {
		t.Errorf("expected location services hint, got %q", got)
	}
}

func TestPhase_MarshalText(t *testing.T) {
	b, err := json.Marshal(map[string]Phase{"phase": PausedForPrecondition})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"phase":"paused"}` {
		t.Errorf("unexpected json %s", b)
	}
	back := map[string]Phase{}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back["phase"] != PausedForPrecondition {
		t.Errorf("expected paused back, got %s", back["phase"])
	}
	var p Phase
	if err := p.UnmarshalText([]byte("sleeping")); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(nil); s.Points != 0 || s.LengthMeters != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}

	t0 := time.Date(2024, 11, 18, 17, 0, 0, 0, time.UTC)
	// One hundredth of a degree of latitude is about 1112m.
	path := []geopoint.GeoPoint{
		geopoint.New(0, 0, geopoint.WithTime(t0), geopoint.WithSpeed(1)),
		geopoint.New(0.01, 0, geopoint.WithTime(t0.Add(10*time.Minute)), geopoint.WithSpeed(3)),
		geopoint.New(0.02, 0, geopoint.WithTime(t0.Add(20*time.Minute))),
	}
	s := Summarize(path)
	if s.Points != 3 {
		t.Errorf("expected 3 points, got %d", s.Points)
	}
	if math.Abs(s.LengthMeters-2224) > 10 {
		t.Errorf("expected ~2224m, got %v", s.LengthMeters)
	}
	if s.Duration != 20*time.Minute {
		t.Errorf("expected 20m duration, got %v", s.Duration)
	}
	if s.MeanSpeedMps != 2 || s.MaxSpeedMps != 3 {
		t.Errorf("expected mean 2 max 3, got %v %v", s.MeanSpeedMps, s.MaxSpeedMps)
	}
	if s.String() == "" {
		t.Error("empty summary string")
	}
}
