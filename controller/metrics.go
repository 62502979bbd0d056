package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	transitionStart  = "start"
	transitionResume = "resume"
	transitionPause  = "pause"
	transitionStop   = "stop"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	StartFailures prometheus.Counter
	BindFailures  prometheus.Counter
	PathPoints    prometheus.Counter
	Running       prometheus.Gauge
}

// NewMetrics creates the controller collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geopulse_tracking_transitions_total",
			Help: "Tracking process starts, resumes, pauses and stops",
		}, []string{"transition"}),
		StartFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geopulse_tracking_start_failures_total",
			Help: "Tracking process starts that returned an error",
		}),
		BindFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geopulse_tracking_bind_failures_total",
			Help: "Failed attempts to bind to the tracking process output",
		}),
		PathPoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "geopulse_path_points_total",
			Help: "Accepted fixes appended to the path",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geopulse_tracking_running",
			Help: "1 while the tracking process is confirmed running",
		}),
	}
}

func (m *Metrics) transition(name string) {
	m.Transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) setRunning(running bool) {
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}
