package geopoint

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/geopulse/common"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"time"
)

var ErrDecode = errors.New("could not decode as flat fix or geojson point feature")

// Decode reads a single fix from JSON.
// Two shapes are understood:
//
//	{"latitude": 46.9, "longitude": -114.0, "accuracy": 4, "speed": 1.2, "time": 1731952467293}
//	{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-114.0, 46.9]},
//	 "properties": {"Accuracy": 4, "Speed": 1.2, "Time": "2024-11-18T17:54:27.293Z"}}
//
// The flat shape also accepts the legacy lat/long/lng keys.
// Time may be unix millis or an RFC3339 string.
func Decode(data []byte) (GeoPoint, error) {
	if !gjson.ValidBytes(data) {
		return GeoPoint{}, fmt.Errorf("%w: invalid json", ErrDecode)
	}
	if coords := gjson.GetBytes(data, "geometry.coordinates"); coords.Exists() {
		return decodeFeature(data, coords)
	}
	return decodeFlat(data)
}

func decodeFeature(data []byte, coords gjson.Result) (GeoPoint, error) {
	arr := coords.Array()
	if len(arr) < 2 {
		return GeoPoint{}, fmt.Errorf("%w: point coordinates %s", ErrDecode, coords.Raw)
	}
	props := gjson.GetBytes(data, "properties")
	p := New(arr[1].Float(), arr[0].Float())
	applyOptional(&p,
		props.Get("Accuracy"),
		props.Get("Speed"),
		first(props.Get("UnixTimeMillis"), props.Get("Time"), props.Get("UnixTime")),
	)
	return p, nil
}

func decodeFlat(data []byte) (GeoPoint, error) {
	lat := first(gjson.GetBytes(data, "latitude"), gjson.GetBytes(data, "lat"))
	lon := first(gjson.GetBytes(data, "longitude"), gjson.GetBytes(data, "long"),
		gjson.GetBytes(data, "lng"), gjson.GetBytes(data, "lon"))
	if !lat.Exists() || !lon.Exists() {
		return GeoPoint{}, fmt.Errorf("%w: missing latitude/longitude", ErrDecode)
	}
	p := New(lat.Float(), lon.Float())
	applyOptional(&p,
		gjson.GetBytes(data, "accuracy"),
		gjson.GetBytes(data, "speed"),
		gjson.GetBytes(data, "time"),
	)
	return p, nil
}

func applyOptional(p *GeoPoint, accuracy, speed, t gjson.Result) {
	// Negative accuracy and speed are the iOS/Android "invalid" markers.
	if accuracy.Exists() && accuracy.Type == gjson.Number && accuracy.Float() >= 0 {
		WithAccuracy(float32(accuracy.Float()))(p)
	}
	if speed.Exists() && speed.Type == gjson.Number && speed.Float() >= 0 {
		WithSpeed(float32(speed.Float()))(p)
	}
	switch {
	case !t.Exists():
	case t.Type == gjson.Number:
		ms := t.Int()
		// Treat 10-digit values as unix seconds.
		if ms < 1e11 {
			ms *= 1000
		}
		WithTimeMillis(ms)(p)
	case t.Type == gjson.String:
		if parsed, err := time.Parse(time.RFC3339Nano, t.String()); err == nil {
			WithTime(parsed)(p)
		}
	}
}

func first(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// ScanNDJSON decodes newline-delimited fixes from r until EOF or ctx is done.
// Lines that fail to decode are logged and skipped.
// The error channel receives at most one value (a read error) and is closed with the points channel.
func ScanNDJSON(ctx context.Context, r io.Reader) (<-chan GeoPoint, <-chan error) {
	out := make(chan GeoPoint)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		n := 0
		for scanner.Scan() {
			n++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			p, err := Decode(line)
			if err != nil {
				slog.Warn("Skipping undecodable fix", "line", n, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- p:
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

// Feature returns the point as a GeoJSON feature, with coordinates rounded
// to surveying precision.
func (p GeoPoint) Feature() *geojson.Feature {
	pt := p.Point()
	pt[0] = common.DecimalToFixed(pt[0], common.GPSPrecisionSurveyed)
	pt[1] = common.DecimalToFixed(pt[1], common.GPSPrecisionSurveyed)
	f := geojson.NewFeature(pt)
	if p.Accuracy != nil {
		f.Properties["Accuracy"] = common.DecimalToFixed(float64(*p.Accuracy), 2)
	}
	if p.Speed != nil {
		f.Properties["Speed"] = common.DecimalToFixed(float64(*p.Speed), 2)
	}
	if t, ok := p.Time(); ok {
		f.Properties["Time"] = t.UTC().Format(time.RFC3339Nano)
		f.Properties["UnixTimeMillis"] = *p.TimeMillis
	}
	return f
}
