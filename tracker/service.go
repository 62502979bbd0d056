/*
Package tracker runs location tracking as a long-lived, singleton process
that outlives any one observer, and lets observers (re)connect to it.
*/

package tracker

import (
	"context"
	"errors"
	"fmt"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/stream"
	"github.com/rotblauer/geopulse/types/geopoint"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrForegroundDenied = errors.New("foreground tracking denied")
	ErrServiceClosed    = errors.New("tracking service closed")
)

// MovingLocations is the filtered location pipeline, eg. a *location.Repository.
type MovingLocations interface {
	ObserveMovingLocations(ctx context.Context) (<-chan geopoint.GeoPoint, error)
}

// Notifier puts the process in the foreground with a user-visible notification.
type Notifier interface {
	StartForeground(n params.Notification) error
	StopForeground()
}

// Handle is a connection to one tracking session.
type Handle interface {
	// MovingLocations streams the session's accepted fixes, beginning with
	// the latest one. The channel closes when ctx is done or the session stops.
	MovingLocations(ctx context.Context) <-chan geopoint.GeoPoint
	ID() uint64
}

type session struct {
	id      uint64
	started time.Time
	output  *stream.Replay[geopoint.GeoPoint]
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *session) MovingLocations(ctx context.Context) <-chan geopoint.GeoPoint {
	return s.output.Subscribe(ctx)
}

func (s *session) ID() uint64 {
	return s.id
}

type Service struct {
	repo     MovingLocations
	notifier Notifier
	config   *params.TrackerConfig
	logger   *slog.Logger

	mu          sync.Mutex
	current     *session
	sessions    atomic.Uint64
	connections *stream.Replay[Handle]
	closed      bool
}

func NewService(repo MovingLocations, notifier Notifier, config *params.TrackerConfig) *Service {
	if config == nil {
		config = params.DefaultTrackerConfig()
	}
	return &Service{
		repo:        repo,
		notifier:    notifier,
		config:      config,
		logger:      slog.With("pkg", "tracker"),
		connections: stream.NewReplay[Handle](params.DefaultReplayConfig()),
	}
}

// Start begins a tracking session if none is running.
// Calling Start while a session runs does nothing.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}
	if s.current != nil {
		return nil
	}

	if err := s.notifier.StartForeground(s.config.Notification); err != nil {
		return fmt.Errorf("start foreground: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	points, err := s.repo.ObserveMovingLocations(ctx)
	if err != nil {
		cancel()
		s.notifier.StopForeground()
		return fmt.Errorf("observe moving locations: %w", err)
	}

	sess := &session{
		id:      s.sessions.Add(1),
		started: time.Now(),
		output:  stream.NewReplay[geopoint.GeoPoint](s.config.Output),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(sess.done)
		for p := range points {
			sess.output.Emit(p)
		}
	}()

	s.current = sess
	s.connections.Emit(sess)
	s.logger.Info("Tracking started", "session", sess.id)
	return nil
}

// Stop ends the running session, if any.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.current == nil {
		return
	}
	sess := s.current
	s.current = nil

	sess.cancel()
	sess.output.Close()
	s.notifier.StopForeground()
	s.connections.Emit(nil)
	s.logger.Info("Tracking stopped", "session", sess.id,
		"duration", time.Since(sess.started).Round(time.Second))
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Close stops tracking and disconnects all binders for good.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()
	s.closed = true
	s.connections.Close()
}
