package controller

import (
	"fmt"
	"github.com/rotblauer/geopulse/types/geopoint"
)

// TrackingState is a snapshot of the controller, as observers see it.
// Snapshots are never modified after they are published; PathPoints in
// particular must be treated as read-only.
type TrackingState struct {
	HasLocationPermission bool                `json:"hasLocationPermission"`
	IsGpsEnabled          bool                `json:"isGpsEnabled"`
	IsServiceRunning      bool                `json:"isServiceRunning"`
	WantsTracking         bool                `json:"wantsTracking"`
	LastPoint             *geopoint.GeoPoint  `json:"lastPoint,omitempty"`
	PathPoints            []geopoint.GeoPoint `json:"pathPoints"`
}

type Phase int

const (
	Idle Phase = iota
	PermissionDenied
	GpsDisabled
	Tracking
	PausedForPrecondition
)

var phaseNames = map[Phase]string{
	Idle:                  "idle",
	PermissionDenied:      "permission-denied",
	GpsDisabled:           "gps-disabled",
	Tracking:              "tracking",
	PausedForPrecondition: "paused",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Phase derives the lifecycle phase.
// Wanting to track while a precondition (or the process binding) is missing is a pause;
// not wanting to track reports the missing precondition, if any.
func (s TrackingState) Phase() Phase {
	switch {
	case s.IsServiceRunning:
		return Tracking
	case s.WantsTracking:
		return PausedForPrecondition
	case !s.HasLocationPermission:
		return PermissionDenied
	case !s.IsGpsEnabled:
		return GpsDisabled
	}
	return Idle
}

// StatusMessage is a one-line, user-facing description of the state.
func (s TrackingState) StatusMessage() string {
	switch s.Phase() {
	case Tracking:
		return fmt.Sprintf("Tracking, %d points", len(s.PathPoints))
	case PausedForPrecondition:
		switch {
		case !s.HasLocationPermission:
			return "Paused: location permission required"
		case !s.IsGpsEnabled:
			return "Paused: turn on location services to resume"
		}
		return "Waiting for the tracking service"
	case PermissionDenied:
		return "Location permission required"
	case GpsDisabled:
		return "Location services are off"
	}
	return "Not tracking"
}
