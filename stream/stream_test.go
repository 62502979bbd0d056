package stream

import (
	"context"
	"github.com/rotblauer/geopulse/params"
	"slices"
	"testing"
	"time"
)

func divideByTwo(n int) int {
	return n / 2
}

func isNonZero(n int) bool {
	return n != 0
}

func TestStream1(t *testing.T) {
	data := []int{0, 2, 4, 6, 8}
	ctx := context.Background()
	myStream := Slice(ctx, data)
	result := Collect(ctx,
		Transform(ctx, divideByTwo,
			Filter(ctx, isNonZero,
				myStream)))

	if !slices.Equal([]int{1, 2, 3, 4}, result) {
		t.Errorf("Expected [1, 2, 3, 4], got %v", result)
	}
}

func TestStream2(t *testing.T) {
	data := []int{0, 2, 4, 6, 8}
	ctx := context.Background()
	s := Slice(ctx, data)
	tf := Transform(ctx, divideByTwo, s)
	f := Filter(ctx, isNonZero, tf)
	result := Collect(ctx, f)

	if !slices.Equal([]int{1, 2, 3, 4}, result) {
		t.Errorf("Expected [1, 2, 3, 4], got %v", result)
	}
}

func TestTap(t *testing.T) {
	ctx := context.Background()
	seen := 0
	result := Collect(ctx, Tap(ctx, func(int) { seen++ }, Slice(ctx, []int{1, 2, 3})))
	if seen != 3 || !slices.Equal([]int{1, 2, 3}, result) {
		t.Errorf("Expected 3 taps of [1, 2, 3], got %d taps of %v", seen, result)
	}
}

func TestDistinctUntilChanged(t *testing.T) {
	ctx := context.Background()
	data := []bool{true, true, false, false, false, true, false, false}
	result := Collect(ctx, DistinctUntilChanged(ctx, Slice(ctx, data)))
	if !slices.Equal([]bool{true, false, true, false}, result) {
		t.Errorf("Expected [true false true false], got %v", result)
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 3; i++ {
		if rb.Add(i) {
			t.Fatalf("unexpected drop adding %d", i)
		}
	}
	if !rb.Add(4) {
		t.Fatal("expected oldest to be dropped")
	}
	if got := rb.Get(); !slices.Equal([]int{2, 3, 4}, got) {
		t.Errorf("Expected [2, 3, 4], got %v", got)
	}
	if rb.Last() != 4 {
		t.Errorf("Expected last 4, got %d", rb.Last())
	}
	for _, want := range []int{2, 3, 4} {
		v, ok := rb.Shift()
		if !ok || v != want {
			t.Fatalf("Expected %d, got %d (%v)", want, v, ok)
		}
	}
	if _, ok := rb.Shift(); ok {
		t.Error("expected empty buffer")
	}
	rb.Add(5)
	if got := rb.Get(); !slices.Equal([]int{5}, got) {
		t.Errorf("Expected [5], got %v", got)
	}
}

func TestTickMeter(t *testing.T) {
	tm := NewTickMeter("test", 0)
	defer tm.Stop()
	tm.MarkIn(10)
	tm.MarkOut(3)
	in, out := tm.Counts()
	if in != 10 || out != 3 {
		t.Errorf("Expected 10/3, got %d/%d", in, out)
	}
	tm.Stop()
	tm.Stop()
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	panic("unreachable")
}

func waitSubscribers[T any](t *testing.T, r *Replay[T], n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for r.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", n, r.Subscribers())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestReplay_LateSubscriberGetsLatest(t *testing.T) {
	r := NewReplay[int](params.DefaultReplayConfig())
	defer r.Close()
	r.Emit(1)
	r.Emit(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := r.Subscribe(ctx)
	if v := receive(t, sub); v != 2 {
		t.Fatalf("Expected replayed 2, got %d", v)
	}
	r.Emit(3)
	if v := receive(t, sub); v != 3 {
		t.Fatalf("Expected 3, got %d", v)
	}
	if v, ok := r.Last(); !ok || v != 3 {
		t.Errorf("Expected last 3, got %d", v)
	}
}

func TestReplay_NoHistory(t *testing.T) {
	r := NewReplay[int](params.ReplayConfig{Replay: 0, Buffer: 4})
	r.Emit(1)
	if _, ok := r.Last(); ok {
		t.Error("expected no last value without replay")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := r.Subscribe(ctx)
	r.Emit(2)
	if v := receive(t, sub); v != 2 {
		t.Fatalf("Expected 2, got %d", v)
	}
}

func TestReplay_EmitNeverBlocksAndDropsOldest(t *testing.T) {
	r := NewReplay[int](params.DefaultReplayConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := r.Subscribe(ctx)
	waitSubscribers(t, r, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.Emit(i)
		}
		r.Close()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}

	got := Collect(context.Background(), sub)
	if len(got) == 0 || len(got) > 10 {
		t.Fatalf("Expected between 1 and 10 values, got %v", got)
	}
	// The subscriber pump may have taken one early value in flight;
	// everything else is the newest contiguous tail.
	tail := got[len(got)-1]
	if tail != 99 {
		t.Errorf("Expected newest value 99 last, got %v", got)
	}
	if !slices.IsSorted(got) {
		t.Errorf("Expected values in emission order, got %v", got)
	}
}

func TestReplay_CancelUnsubscribes(t *testing.T) {
	r := NewReplay[int](params.DefaultReplayConfig())
	defer r.Close()
	ctx, cancel := context.WithCancel(context.Background())
	sub := r.Subscribe(ctx)
	waitSubscribers(t, r, 1)
	cancel()
	for range sub {
	}
	waitSubscribers(t, r, 0)
}

func TestReplay_SubscribeAfterClose(t *testing.T) {
	r := NewReplay[string](params.DefaultReplayConfig())
	r.Emit("last")
	r.Close()
	r.Emit("ignored")
	got := Collect(context.Background(), r.Subscribe(context.Background()))
	if !slices.Equal([]string{"last"}, got) {
		t.Errorf("Expected [last], got %v", got)
	}
}
