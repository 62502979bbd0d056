package cmd

import (
	"bytes"
	"context"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/geopulse/location"
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/types/geopoint"
	"strings"
	"testing"
)

const recordedFixes = `{"latitude": 46.9, "longitude": -114.0, "accuracy": 4, "time": 1731952467000}
{"latitude": 46.9, "longitude": -114.0, "accuracy": 4, "time": 1731952467000}
{"latitude": 46.90001, "longitude": -114.0, "accuracy": 4, "time": 1731952468000}
{"latitude": 46.9, "longitude": -114.0, "accuracy": 80, "time": 1731952469000}
not a fix
{"latitude": 46.901, "longitude": -114.0, "accuracy": 4, "speed": 1.5, "time": 1731952530000}
`

func filterRecorded(t *testing.T, asGeoJSON bool) (string, []geopoint.GeoPoint) {
	t.Helper()
	config := params.DefaultAppConfig()
	config.Pipeline.MeterInterval = 0
	provider := &readerProvider{r: strings.NewReader(recordedFixes)}
	repo := location.NewRepository(location.NewSource(provider, config.Source), nil, config.Pipeline)
	moving, err := repo.ObserveMovingLocations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	path, err := writeFixes(buf, moving, asGeoJSON)
	if err != nil {
		t.Fatal(err)
	}
	if err := provider.Err(); err != nil {
		t.Fatal(err)
	}
	return buf.String(), path
}

func TestFilter_NDJSON(t *testing.T) {
	out, path := filterRecorded(t, false)
	if len(path) != 2 {
		t.Fatalf("expected 2 moving fixes, got %d: %v", len(path), path)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	last, err := geopoint.Decode([]byte(lines[1]))
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(path[1]) {
		t.Errorf("expected %v, got %v", path[1], last)
	}
}

func TestFilter_GeoJSON(t *testing.T) {
	out, _ := filterRecorded(t, true)
	fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("expected 2 points and a line, got %d features", len(fc.Features))
	}
}

func TestReaderProvider_OneShot(t *testing.T) {
	p := &readerProvider{r: strings.NewReader("")}
	if _, err := p.RequestLocationUpdates(context.Background(), location.Request{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.RequestLocationUpdates(context.Background(), location.Request{}); err == nil {
		t.Error("expected second request to fail")
	}
}
