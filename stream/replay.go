package stream

import (
	"context"
	"github.com/rotblauer/geopulse/params"
	"sync"
)

// Replay is a hot broadcast of values of T.
// New subscribers first receive the most recent value(s) emitted, then
// everything emitted after they subscribed. Each subscriber owns a ring
// buffer of Replay+Buffer pending values; when a slow subscriber's buffer
// is full, its oldest pending value is dropped. Emit never blocks.
type Replay[T any] struct {
	config params.ReplayConfig

	mu      sync.Mutex
	history *RingBuffer[T]
	subs    map[*replaySub[T]]struct{}
	closed  bool
}

type replaySub[T any] struct {
	pending *RingBuffer[T]
	notify  chan struct{}
	done    chan struct{}
}

func NewReplay[T any](config params.ReplayConfig) *Replay[T] {
	if config.Replay < 0 {
		config.Replay = 0
	}
	if config.Buffer < 0 {
		config.Buffer = 0
	}
	return &Replay[T]{
		config:  config,
		history: NewRingBuffer[T](config.Replay),
		subs:    make(map[*replaySub[T]]struct{}),
	}
}

// Emit publishes v to all current subscribers and the replay history.
// Emitting to a closed Replay is a no-op.
func (r *Replay[T]) Emit(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.config.Replay > 0 {
		r.history.Add(v)
	}
	for sub := range r.subs {
		sub.pending.Add(v)
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// Last returns the most recently emitted value, if the Replay keeps any history.
func (r *Replay[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.Replay == 0 || r.history.Len() == 0 {
		var zero T
		return zero, false
	}
	return r.history.Last(), true
}

// Subscribe returns a channel receiving the replay history, then live values.
// The channel is closed when ctx is done, or after the Replay is closed and
// all pending values have been delivered.
func (r *Replay[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &replaySub[T]{
		pending: NewRingBuffer[T](r.config.Replay + r.config.Buffer),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	if r.config.Replay > 0 {
		for _, v := range r.history.Get() {
			sub.pending.Add(v)
		}
	}
	if r.closed {
		close(sub.done)
	} else {
		r.subs[sub] = struct{}{}
	}
	r.mu.Unlock()

	out := make(chan T)
	go func() {
		defer close(out)
		defer r.unsubscribe(sub)
		for {
			v, ok := sub.pending.Shift()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-sub.done:
					// Closed; anything emitted before close is already pending.
					if sub.pending.Len() == 0 {
						return
					}
				case <-sub.notify:
				}
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out
}

func (r *Replay[T]) unsubscribe(sub *replaySub[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, sub)
}

// Subscribers returns the number of live subscriptions.
func (r *Replay[T]) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close stops the Replay. Subscribers drain what is pending and then see their channels closed.
func (r *Replay[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for sub := range r.subs {
		close(sub.done)
	}
	r.subs = make(map[*replaySub[T]]struct{})
}
