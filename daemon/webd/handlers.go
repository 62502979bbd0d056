package webd

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/geopulse/controller"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/platform/sim"
	"github.com/rotblauer/geopulse/types/geopoint"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes bounds request bodies; /sim/fixes takes whole NDJSON tracks.
const maxBodyBytes = 32 << 20

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`

	Phase   controller.Phase   `json:"phase"`
	Status  string             `json:"status"`
	Summary controller.Summary `json:"summary"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	state := s.controller.State()
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		WSOpen:    s.wsOpen.Load(),
		WSConns:   s.melodyInstance.Len(),
		Phase:     state.Phase(),
		Status:    state.StatusMessage(),
		Summary:   controller.Summarize(state.PathPoints),
	}
	s.writeJSON(w, st)
}

func (s *WebDaemon) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.controller.State())
}

// handlePathGeoJSON writes the path as a FeatureCollection: one Point feature
// per fix, and a LineString feature once there are at least two.
func (s *WebDaemon) handlePathGeoJSON(w http.ResponseWriter, r *http.Request) {
	path := geopoint.GeoPoints(s.controller.State().PathPoints)
	fc := geojson.NewFeatureCollection()
	for _, p := range path {
		fc.Append(p.Feature())
	}
	if len(path) > 1 {
		line := geojson.NewFeature(path.LineString())
		line.Properties["Points"] = len(path)
		fc.Append(line)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		s.logger.Error("Failed to marshal path", "error", err)
		http.Error(w, "Failed to marshal path", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(b); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleStartTracking(w http.ResponseWriter, r *http.Request) {
	s.respondAfter(w, s.controller.StartTracking())
}

func (s *WebDaemon) handleStopTracking(w http.ResponseWriter, r *http.Request) {
	s.respondAfter(w, s.controller.StopTracking())
}

// handlePermissionResult reports the outcome of a permission prompt: {"granted": true}.
func (s *WebDaemon) handlePermissionResult(w http.ResponseWriter, r *http.Request) {
	granted, ok := s.readBool(w, r, "granted")
	if !ok {
		return
	}
	s.respondAfter(w, s.controller.OnPermissionResult(granted))
}

func (s *WebDaemon) handleClearPath(w http.ResponseWriter, r *http.Request) {
	s.respondAfter(w, s.controller.ClearPath())
}

// handleSimGps switches the simulated location services: {"enabled": false}.
func (s *WebDaemon) handleSimGps(w http.ResponseWriter, r *http.Request) {
	enabled, ok := s.readBool(w, r, "enabled")
	if !ok {
		return
	}
	s.host.SetLocationEnabled(enabled)
	s.respondAfter(w, nil)
}

// handleSimPermission grants or revokes the simulated permission: {"granted": false}.
// Like a real device, nothing is broadcast; the controller notices on its next poll.
func (s *WebDaemon) handleSimPermission(w http.ResponseWriter, r *http.Request) {
	granted, ok := s.readBool(w, r, "granted")
	if !ok {
		return
	}
	s.host.SetPermission(granted)
	s.respondAfter(w, nil)
}

type fixResult struct {
	Delivered int `json:"delivered"`
}

// handleSimFix reports a single fix, flat or as a GeoJSON point feature.
func (s *WebDaemon) handleSimFix(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	fix, err := geopoint.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := fixResult{}
	if s.host.Provider.PushFix(fix) {
		res.Delivered = 1
	}
	s.writeJSON(w, res)
}

// handleSimFixes reports every fix in an NDJSON body, as fast as they decode.
func (s *WebDaemon) handleSimFixes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	n, err := s.host.Provider.ReplayNDJSON(r.Context(), r.Body, 0)
	if err != nil {
		s.logger.Warn("Fix replay failed", "delivered", n, "error", err)
		http.Error(w, fmt.Sprintf("replay failed after %d fixes: %v", n, err), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, fixResult{Delivered: n})
}

// handleSimAccel reports an accelerometer sample: {"x": 0, "y": 0, "z": 9.81}.
func (s *WebDaemon) handleSimAccel(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	sample, err := sim.DecodeSample(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.host.Accelerometer.PushSample(sample)
	w.WriteHeader(http.StatusNoContent)
}

// respondAfter writes the current state, or the error err maps to.
func (s *WebDaemon) respondAfter(w http.ResponseWriter, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrClosed) || errors.Is(err, controller.ErrNotStarted) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Warn("Controller request failed", "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	s.writeJSON(w, s.controller.State())
}

func (s *WebDaemon) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, false
	}
	return body, true
}

func (s *WebDaemon) readBool(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	body, ok := s.readBody(w, r)
	if !ok {
		return false, false
	}
	v := gjson.GetBytes(body, key)
	if !gjson.ValidBytes(body) || (v.Type != gjson.True && v.Type != gjson.False) {
		http.Error(w, fmt.Sprintf("want {%q: true|false}", key), http.StatusBadRequest)
		return false, false
	}
	return v.Bool(), true
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(j); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
