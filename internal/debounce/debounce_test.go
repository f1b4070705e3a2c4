package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerCoalescesBurst(t *testing.T) {
	d := New(30 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	time.Sleep(5 * time.Millisecond)
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(5 * time.Millisecond)
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestStopCancelsPending(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no calls after Stop, got %d", got)
	}
}

func TestScheduleRunsStagesInOrder(t *testing.T) {
	d := New(0)
	var (
		mu    sync.Mutex
		order []string
		done  = make(chan struct{})
	)
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	d.Schedule(
		Stage{After: 5 * time.Millisecond, Run: record("first")},
		Stage{After: 5 * time.Millisecond, Run: record("second")},
		Stage{After: 5 * time.Millisecond, Run: func() { record("third")(); close(done) }},
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for stages")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("unexpected stage order: %v", order)
	}
}

func TestRescheduleDropsRemainingStages(t *testing.T) {
	d := New(0)
	var later atomic.Int32
	firstDone := make(chan struct{})

	d.Schedule(
		Stage{After: 5 * time.Millisecond, Run: func() { close(firstDone) }},
		Stage{After: 60 * time.Millisecond, Run: func() { later.Add(1) }},
	)
	<-firstDone
	d.Schedule(Stage{After: time.Hour})

	time.Sleep(120 * time.Millisecond)
	if got := later.Load(); got != 0 {
		t.Fatalf("expected the stale second stage to be dropped, ran %d times", got)
	}
}
