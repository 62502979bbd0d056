/*
Package sim is a simulated device: switchable location permission and
location services, a positioning provider and accelerometer fed by hand or
from files, and a notifier that records the foreground notification.
It lets the tracking core run as a desktop daemon and under test.
*/

package sim

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/geopulse/events"
	"github.com/rotblauer/geopulse/geo/act"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/tracker"
	"log/slog"
	"sync/atomic"
	"time"
)

type Host struct {
	permission atomic.Bool
	enabled    atomic.Bool
	changes    events.ProviderChangeFeed

	Provider      *Provider
	Accelerometer *Accelerometer
	Notifier      *Notifier

	logger *slog.Logger
}

type HostConfig struct {
	Permission      bool
	LocationEnabled bool
	Accelerometer   bool
}

func NewHost(config HostConfig) *Host {
	h := &Host{
		Accelerometer: NewAccelerometer(config.Accelerometer),
		Notifier:      &Notifier{},
		logger:        slog.With("pkg", "sim"),
	}
	h.Provider = newProvider(h)
	h.permission.Store(config.Permission)
	h.enabled.Store(config.LocationEnabled)
	return h
}

func (h *Host) HasLocationPermission() (bool, error) {
	return h.permission.Load(), nil
}

func (h *Host) IsLocationEnabled() (bool, error) {
	return h.enabled.Load(), nil
}

// SetPermission grants or revokes location permission.
// Like real devices, permission changes are not broadcast; observers must poll.
func (h *Host) SetPermission(granted bool) {
	if h.permission.Swap(granted) != granted {
		h.logger.Info("Location permission changed", "granted", granted)
	}
}

// SetLocationEnabled switches location services and broadcasts the change.
func (h *Host) SetLocationEnabled(enabled bool) {
	if h.enabled.Swap(enabled) == enabled {
		return
	}
	h.logger.Info("Location services changed", "enabled", enabled)
	h.changes.Send(events.ProviderChange{
		LocationEnabled: &enabled,
		Time:            time.Now(),
	})
}

func (h *Host) SubscribeProviderChanges(ch chan<- events.ProviderChange) event.Subscription {
	return h.changes.Subscribe(ch)
}

func (h *Host) PositioningProvider() location.Provider {
	return h.Provider
}

func (h *Host) MotionSensor() act.Accelerometer {
	return h.Accelerometer
}

func (h *Host) ForegroundNotifier() tracker.Notifier {
	return h.Notifier
}
