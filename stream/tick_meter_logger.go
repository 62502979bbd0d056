package stream

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/geopulse/common"
	"log/slog"
	"sync"
	"time"
)

// TickMeter counts elements going into and out of a pipeline stage
// and logs the totals and rates on an interval.
type TickMeter struct {
	name     string
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	quit     chan struct{}
	stopOnce sync.Once

	in       metrics.Counter
	out      metrics.Counter
	inMeter  metrics.Meter
	outMeter metrics.Meter
}

// NewTickMeter starts a meter logging every interval.
// A non-positive interval counts without logging.
func NewTickMeter(name string, interval time.Duration) *TickMeter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	tm := &TickMeter{
		name:     name,
		interval: interval,
		started:  time.Now(),
		quit:     make(chan struct{}),
		in:       metrics.NewCounter(),
		out:      metrics.NewCounter(),
		inMeter:  metrics.NewMeter(),
		outMeter: metrics.NewMeter(),
	}

	if interval > 0 {
		tm.ticker = time.NewTicker(interval)
		go tm.run()
	}
	return tm
}

func (tm *TickMeter) MarkIn(n int64) {
	tm.in.Inc(n)
	tm.inMeter.Mark(n)
}

func (tm *TickMeter) MarkOut(n int64) {
	tm.out.Inc(n)
	tm.outMeter.Mark(n)
}

// Counts returns the totals marked so far.
func (tm *TickMeter) Counts() (in, out int64) {
	return tm.in.Snapshot().Count(), tm.out.Snapshot().Count()
}

func (tm *TickMeter) run() {
	for {
		select {
		case <-tm.quit:
			return
		case <-tm.ticker.C:
			tm.log()
		}
	}
}

func (tm *TickMeter) log() {
	inSnap := tm.inMeter.Snapshot()
	outSnap := tm.outMeter.Snapshot()
	dropped := inSnap.Count() - outSnap.Count()

	slog.Info("Fix rates", "stage", tm.name,
		"in", humanize.Comma(inSnap.Count()),
		"out", humanize.Comma(outSnap.Count()),
		"dropped", humanize.Comma(dropped),
		"in.rate1", common.DecimalToFixed(inSnap.Rate1(), 2),
		"out.rate1", common.DecimalToFixed(outSnap.Rate1(), 2),
		"running", time.Since(tm.started).Round(time.Second))
}

// Stop logs a final line and releases the meter. It is safe to call more than once.
func (tm *TickMeter) Stop() {
	if tm == nil {
		return
	}
	tm.stopOnce.Do(func() {
		close(tm.quit)
		if tm.ticker != nil {
			tm.ticker.Stop()
			tm.log()
		}
		tm.inMeter.Stop()
		tm.outMeter.Stop()
	})
}
