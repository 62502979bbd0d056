/*
Package controller reconciles the user's wish to track with location
permission, location services, and the background tracking process, and
accumulates the fixes the process reports into an observable path.
*/

package controller

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/geopulse/events"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"github.com/rotblauer/geopulse/tracker"
	"github.com/rotblauer/geopulse/types/geopoint"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrClosed     = errors.New("controller closed")
	ErrNotStarted = errors.New("controller not started")
)

type Permissions interface {
	HasLocationPermission() (bool, error)
}

type LocationSettings interface {
	IsLocationEnabled() (bool, error)
}

// TrackingProcess is the background tracking process, eg. a *tracker.Service.
// Start and Stop must be idempotent.
type TrackingProcess interface {
	Start() error
	Stop()
	Running() bool
}

// Binder connects to the tracking process output, eg. a *tracker.Connector.
type Binder interface {
	Bind(ctx context.Context) (<-chan tracker.Handle, error)
}

// ProviderChanges is an optional, best-effort push of provider and permission changes.
type ProviderChanges interface {
	SubscribeProviderChanges(ch chan<- events.ProviderChange) event.Subscription
}

// Platform is everything the controller needs from its host.
// ProviderChanges may be nil; polling still keeps state current.
type Platform struct {
	Permissions     Permissions
	Settings        LocationSettings
	Process         TrackingProcess
	Binder          Binder
	ProviderChanges ProviderChanges
}

type Controller struct {
	platform Platform
	config   *params.ControllerConfig
	metrics  *Metrics
	logger   *slog.Logger

	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once

	current atomic.Pointer[TrackingState]
	states  *stream.Replay[TrackingState]

	// Owned by the loop goroutine.
	state      TrackingState
	wants      bool
	path       []geopoint.GeoPoint
	generation uint64
	cancelBind context.CancelFunc
}

// New returns a stopped controller. A nil metrics gets unregistered collectors.
func New(platform Platform, config *params.ControllerConfig, metrics *Metrics) *Controller {
	if config == nil {
		config = params.DefaultControllerConfig()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	c := &Controller{
		platform: platform,
		config:   config,
		metrics:  metrics,
		logger:   slog.With("pkg", "controller"),
		inbox:    make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		states: stream.NewReplay[TrackingState](params.ReplayConfig{
			Replay: 1,
			Buffer: config.StateBuffer,
		}),
	}
	c.state.PathPoints = []geopoint.GeoPoint{}
	initial := c.state
	c.current.Store(&initial)
	return c
}

// Start runs the controller until ctx is done or Close is called.
// The first evaluation happens before Start returns.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("controller already started")
	}
	go c.loop(ctx)
	return c.Reevaluate()
}

// Close stops the controller loop and every binding it holds.
// The tracking process itself is left as it is; it outlives its observers.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
	if c.started.Load() {
		<-c.done
	}
	c.states.Close()
}

func (c *Controller) loop(ctx context.Context) {
	defer close(c.done)
	defer c.cancelJobs()

	var tick <-chan time.Time
	if c.config.PollInterval > 0 {
		ticker := time.NewTicker(c.config.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var changes chan events.ProviderChange
	var subErr <-chan error
	if c.platform.ProviderChanges != nil {
		changes = make(chan events.ProviderChange, 8)
		sub := c.platform.ProviderChanges.SubscribeProviderChanges(changes)
		defer sub.Unsubscribe()
		subErr = sub.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.quit:
			return
		case <-tick:
			c.reconcile("poll")
		case change := <-changes:
			c.logger.Debug("Provider change", "change", change)
			c.reconcile("provider")
		case err := <-subErr:
			if err != nil {
				c.logger.Warn("Provider change subscription failed", "error", err)
			}
			changes, subErr = nil, nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (c *Controller) do(fn func()) error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	ran := make(chan struct{})
	select {
	case c.inbox <- func() {
		defer close(ran)
		fn()
	}:
	case <-c.done:
		return ErrClosed
	}
	<-ran
	return nil
}

// post hands fn to the loop without waiting for it to run.
func (c *Controller) post(ctx context.Context, fn func()) {
	select {
	case c.inbox <- fn:
	case <-ctx.Done():
	case <-c.done:
	}
}

// StartTracking records the wish to track and starts the process if location services are on.
// Without location permission it does nothing; call OnPermissionResult once granted.
func (c *Controller) StartTracking() error {
	return c.do(func() {
		perm, gps := c.readPreconditions()
		c.setPreconditions(perm, gps)
		if !perm {
			c.logger.Info("Start ignored, no location permission")
			c.publish()
			return
		}
		c.wants = true
		if gps && !c.state.IsServiceRunning {
			c.resume(transitionStart)
		} else if !gps {
			c.logger.Info("Tracking wanted, waiting for location services")
		}
		c.publish()
	})
}

// StopTracking clears the wish to track, stops the process, and drops its bindings.
// Polling continues.
func (c *Controller) StopTracking() error {
	return c.do(func() {
		c.wants = false
		c.cancelJobs()
		wasRunning := c.state.IsServiceRunning || c.platform.Process.Running()
		c.platform.Process.Stop()
		c.setRunning(false)
		if wasRunning {
			c.metrics.transition(transitionStop)
			c.logger.Info("Tracking stopped")
		}
		c.publish()
	})
}

// OnPermissionResult takes the outcome of a permission request.
func (c *Controller) OnPermissionResult(granted bool) error {
	return c.do(func() {
		gps := c.readGps()
		c.apply("permission", granted, gps)
	})
}

// Reevaluate re-reads permission and location services now, rather than on the next poll.
func (c *Controller) Reevaluate() error {
	return c.do(func() {
		c.reconcile("explicit")
	})
}

// ClearPath forgets the accumulated path. LastPoint and tracking are not affected.
func (c *Controller) ClearPath() error {
	return c.do(func() {
		c.path = nil
		c.publish()
	})
}

// State returns the latest published snapshot.
func (c *Controller) State() TrackingState {
	return *c.current.Load()
}

// Subscribe streams snapshots, starting with the latest.
// A slow subscriber misses intermediate snapshots, never the latest one.
func (c *Controller) Subscribe(ctx context.Context) <-chan TrackingState {
	return c.states.Subscribe(ctx)
}

func (c *Controller) reconcile(reason string) {
	perm, gps := c.readPreconditions()
	c.apply(reason, perm, gps)
}

func (c *Controller) apply(reason string, perm, gps bool) {
	wasRunning := c.state.IsServiceRunning
	c.setPreconditions(perm, gps)
	ok := perm && gps

	switch {
	case c.wants && ok && !c.state.IsServiceRunning:
		c.resume(transitionResume)
	case c.wants && !ok && (wasRunning || c.platform.Process.Running()):
		c.cancelJobs()
		c.platform.Process.Stop()
		c.metrics.transition(transitionPause)
		c.logger.Info("Tracking paused", "reason", reason, "permission", perm, "gps", gps)
	case !c.wants && (wasRunning || c.platform.Process.Running()):
		c.cancelJobs()
		c.platform.Process.Stop()
		c.metrics.transition(transitionStop)
		c.logger.Info("Stopped unwanted tracking process", "reason", reason)
	}
	c.publish()
}

// resume starts the process and binds to its output.
// Running is only asserted once both succeed; otherwise the next evaluation retries.
func (c *Controller) resume(transition string) {
	if err := c.platform.Process.Start(); err != nil {
		c.metrics.StartFailures.Inc()
		c.logger.Warn("Tracking process failed to start", "error", err)
		return
	}
	if err := c.bind(); err != nil {
		c.metrics.BindFailures.Inc()
		c.logger.Warn("Failed to bind tracking process", "error", err)
		return
	}
	c.setRunning(true)
	c.metrics.transition(transition)
	c.logger.Info("Tracking running", "transition", transition)
}

// bind replaces any previous binding with a new one.
func (c *Controller) bind() error {
	c.cancelJobs()
	ctx, cancel := context.WithCancel(context.Background())
	handles, err := c.platform.Binder.Bind(ctx)
	if err != nil {
		cancel()
		return err
	}
	c.cancelBind = cancel
	go c.followHandles(ctx, c.generation, handles)
	return nil
}

// cancelJobs cancels the binding and its collection, and invalidates
// anything they already handed to the loop.
func (c *Controller) cancelJobs() {
	c.generation++
	if c.cancelBind != nil {
		c.cancelBind()
		c.cancelBind = nil
	}
}

// followHandles collects from the current handle, replacing the collection on every (re)connect.
func (c *Controller) followHandles(ctx context.Context, gen uint64, handles <-chan tracker.Handle) {
	cancelCollect := func() {}
	defer func() { cancelCollect() }()
	for h := range handles {
		cancelCollect()
		cancelCollect = func() {}
		if h == nil {
			c.post(ctx, func() {
				c.disconnected(gen)
			})
			continue
		}
		c.logger.Debug("Tracking process connected", "session", h.ID())
		collectCtx, cancel := context.WithCancel(ctx)
		cancelCollect = cancel
		go c.collect(collectCtx, gen, h)
	}
}

func (c *Controller) collect(ctx context.Context, gen uint64, h tracker.Handle) {
	for p := range h.MovingLocations(ctx) {
		c.post(ctx, func() {
			c.appendPoint(gen, p)
		})
	}
}

// disconnected handles the process going away underneath a live binding.
// Running can no longer be confirmed, so the next evaluation resumes it.
func (c *Controller) disconnected(gen uint64) {
	if gen != c.generation || !c.state.IsServiceRunning {
		return
	}
	c.logger.Warn("Tracking process disconnected")
	c.setRunning(false)
	c.publish()
}

func (c *Controller) appendPoint(gen uint64, p geopoint.GeoPoint) {
	if gen != c.generation {
		return
	}
	c.path = append(c.path, p)
	c.state.LastPoint = &p
	c.metrics.PathPoints.Inc()
	c.publish()
}

func (c *Controller) readPreconditions() (perm, gps bool) {
	return c.readPermission(), c.readGps()
}

func (c *Controller) readPermission() bool {
	ok, err := c.platform.Permissions.HasLocationPermission()
	if err != nil {
		c.logger.Warn("Permission check failed", "error", err)
		return false
	}
	return ok
}

func (c *Controller) readGps() bool {
	ok, err := c.platform.Settings.IsLocationEnabled()
	if err != nil {
		c.logger.Warn("Location settings check failed", "error", err)
		return false
	}
	return ok
}

// setPreconditions records permission and location services,
// and drops the running flag the moment either is missing.
func (c *Controller) setPreconditions(perm, gps bool) {
	if c.state.HasLocationPermission != perm || c.state.IsGpsEnabled != gps {
		c.logger.Info("Preconditions changed", "permission", perm, "gps", gps)
	}
	c.state.HasLocationPermission = perm
	c.state.IsGpsEnabled = gps
	if !perm || !gps {
		c.setRunning(false)
	}
}

func (c *Controller) setRunning(running bool) {
	c.state.IsServiceRunning = running
	c.metrics.setRunning(running)
}

// publish stores and broadcasts a snapshot of the loop's state.
func (c *Controller) publish() {
	s := c.state
	s.WantsTracking = c.wants
	n := len(c.path)
	// Later appends never write below n, so the snapshot stays intact.
	s.PathPoints = c.path[:n:n]
	if s.PathPoints == nil {
		s.PathPoints = []geopoint.GeoPoint{}
	}
	if s.LastPoint != nil {
		last := *s.LastPoint
		s.LastPoint = &last
	}
	c.current.Store(&s)
	c.states.Emit(s)
}
