/*
Package app assembles the tracking stack on a device: raw location source,
movement detector, moving-location pipeline, background tracking service and
the controller that reconciles them.
*/

package app

import (
	"context"
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotblauer/geopulse/controller"
	"github.com/rotblauer/geopulse/geo/act"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/tracker"
	"log/slog"
)

// Device is the host platform. A *sim.Host is one.
type Device interface {
	controller.Permissions
	controller.LocationSettings
	controller.ProviderChanges

	PositioningProvider() location.Provider
	MotionSensor() act.Accelerometer
	ForegroundNotifier() tracker.Notifier
}

type App struct {
	Config *params.AppConfig

	Source     *location.Source
	Movement   *act.Detector
	Repository *location.Repository
	Service    *tracker.Service
	Connector  *tracker.Connector
	Controller *controller.Controller
	Metrics    *controller.Metrics

	logger *slog.Logger
}

// New wires the stack without starting anything.
// Controller metrics are registered with reg unless it is nil.
func New(device Device, config *params.AppConfig, reg prometheus.Registerer) *App {
	if config == nil {
		config = params.DefaultAppConfig()
	}
	a := &App{
		Config: config,
		logger: slog.With("pkg", "app"),
	}
	a.Source = location.NewSource(device.PositioningProvider(), config.Source)
	a.Movement = act.NewDetector(device.MotionSensor(), config.Pipeline.Movement)
	a.Repository = location.NewRepository(a.Source, a.Movement, config.Pipeline)
	a.Service = tracker.NewService(a.Repository, device.ForegroundNotifier(), config.Tracker)
	a.Connector = tracker.NewConnector(a.Service)
	a.Metrics = controller.NewMetrics(reg)
	a.Controller = controller.New(controller.Platform{
		Permissions:     device,
		Settings:        device,
		Process:         a.Service,
		Binder:          a.Connector,
		ProviderChanges: device,
	}, config.Controller, a.Metrics)
	return a
}

// Start runs the controller until ctx is done or Close is called.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("Starting", "mode", a.Config.Pipeline.Mode)
	if err := a.Controller.Start(ctx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	return nil
}

// Close stops the controller, then the tracking service.
func (a *App) Close() {
	a.Controller.Close()
	a.Service.Close()
	a.logger.Info("Closed")
}
