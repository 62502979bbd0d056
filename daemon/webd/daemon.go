package webd

import (
	"context"
	"errors"
	"fmt"
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotblauer/geopulse/controller"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/platform/sim"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// WebDaemon serves the controller's state to UIs, and lets them express
// tracking intent and flip the simulated device's switches.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	controller *controller.Controller
	host       *sim.Host
	gatherer   prometheus.Gatherer

	logger         *slog.Logger
	started        time.Time
	melodyInstance *melody.Melody
	wsOpen         atomic.Bool
	feedState      event.FeedOf[controller.TrackingState]
}

// NewWebDaemon returns a daemon for c. The host may be nil, in which case
// the /sim routes are not served. A nil gatherer serves the default registry.
func NewWebDaemon(config *params.WebDaemonConfig, c *controller.Controller, host *sim.Host, gatherer prometheus.Gatherer) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &WebDaemon{
		Config:     config,
		controller: c,
		host:       host,
		gatherer:   gatherer,
		logger:     slog.With("d", "web"),
		started:    time.Now(),
		feedState:  event.FeedOf[controller.TrackingState]{},
	}
}

// Run serves HTTP until ctx is done, then shuts the server down.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", s.Config.Network, s.Config.Address, err)
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.forwardStates(ctx)

	served := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "address", ln.Addr().String())
		served <- server.Serve(ln)
	}()

	select {
	case err := <-served:
		s.closeMelody()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeMelody()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Web daemon stopped")
	return nil
}

// closeMelody closes the websocket hub and all its sessions.
func (s *WebDaemon) closeMelody() {
	s.wsOpen.Store(false)
	if err := s.melodyInstance.Close(); err != nil {
		s.logger.Warn("Failed to close websocket hub", "error", err)
	}
}

// forwardStates relays controller snapshots into the state feed until ctx is done.
func (s *WebDaemon) forwardStates(ctx context.Context) {
	for state := range s.controller.Subscribe(ctx) {
		s.feedState.Send(state)
	}
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.melodyInstance.HandleRequest(w, r); err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
		}
	})
	router.Path("/metrics").Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiRoutes.Path("/path.geojson").HandlerFunc(s.handlePathGeoJSON).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/state").HandlerFunc(s.handleState).Methods(http.MethodGet)

	authenticated := apiJSONRoutes.NewRoute().Subrouter()
	authenticated.Use(s.tokenAuthenticationMiddleware)

	authenticated.Path("/tracking/start").HandlerFunc(s.handleStartTracking).Methods(http.MethodPost)
	authenticated.Path("/tracking/stop").HandlerFunc(s.handleStopTracking).Methods(http.MethodPost)
	authenticated.Path("/permission").HandlerFunc(s.handlePermissionResult).Methods(http.MethodPost)
	authenticated.Path("/path").HandlerFunc(s.handleClearPath).Methods(http.MethodDelete)

	if s.host != nil {
		simRoutes := authenticated.PathPrefix("/sim").Subrouter()
		simRoutes.Path("/gps").HandlerFunc(s.handleSimGps).Methods(http.MethodPost)
		simRoutes.Path("/permission").HandlerFunc(s.handleSimPermission).Methods(http.MethodPost)
		simRoutes.Path("/fix").HandlerFunc(s.handleSimFix).Methods(http.MethodPost)
		simRoutes.Path("/fixes").HandlerFunc(s.handleSimFixes).Methods(http.MethodPost)
		simRoutes.Path("/accel").HandlerFunc(s.handleSimAccel).Methods(http.MethodPost)
	}

	return router
}
