package sim

import (
	"context"
	"errors"
	"fmt"
	"github.com/rotblauer/geopulse/geo/act"
	"github.com/tidwall/gjson"
	"sync"
	"time"
)

var ErrDecodeSample = errors.New("could not decode accelerometer sample")

// Accelerometer is a simulated sensor fed with PushSample.
// An absent one behaves like a device without the sensor.
type Accelerometer struct {
	present bool

	mu   sync.Mutex
	subs map[chan act.Sample]struct{}
}

func NewAccelerometer(present bool) *Accelerometer {
	return &Accelerometer{
		present: present,
		subs:    make(map[chan act.Sample]struct{}),
	}
}

func (a *Accelerometer) Samples(ctx context.Context) (<-chan act.Sample, error) {
	if !a.present {
		return nil, act.ErrNoAccelerometer
	}
	ch := make(chan act.Sample, requestBuffer)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		delete(a.subs, ch)
		close(ch)
		a.mu.Unlock()
	}()
	return ch, nil
}

// PushSample delivers a sample to every listener. Listeners that are behind miss it.
func (a *Accelerometer) PushSample(s act.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// DecodeSample reads {"x": 0.1, "y": 0.2, "z": 9.8, "time": 1731952467293}.
// A missing time means now.
func DecodeSample(data []byte) (act.Sample, error) {
	if !gjson.ValidBytes(data) {
		return act.Sample{}, fmt.Errorf("%w: invalid json", ErrDecodeSample)
	}
	r := gjson.GetManyBytes(data, "x", "y", "z", "time")
	for _, axis := range r[:3] {
		if axis.Type != gjson.Number {
			return act.Sample{}, fmt.Errorf("%w: x, y and z are required numbers", ErrDecodeSample)
		}
	}
	s := act.Sample{X: r[0].Float(), Y: r[1].Float(), Z: r[2].Float(), Time: time.Now()}
	if r[3].Type == gjson.Number {
		s.Time = time.UnixMilli(r[3].Int())
	}
	return s, nil
}

// Listeners returns the number of active sample streams.
func (a *Accelerometer) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}
