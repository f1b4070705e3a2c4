// Package debounce provides cancel-and-restart timers for coalescing bursts
// of changes into a single delayed action.
package debounce

import (
	"sync"
	"time"
)

// Stage is one step of a delayed sequence. After is measured from the end
// of the previous stage.
type Stage struct {
	After time.Duration
	Run   func()
}

// Debouncer runs the most recently scheduled sequence once the caller has
// been quiet for the first stage's delay. Scheduling again cancels every
// stage that has not started yet.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the debouncer's own delay.
func (d *Debouncer) Trigger(fn func()) {
	d.Schedule(Stage{After: d.delay, Run: fn})
}

func (d *Debouncer) Schedule(stages ...Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.stopLocked()
	d.armLocked(d.gen, stages)
}

// Stop cancels any pending stage.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) armLocked(gen uint64, stages []Stage) {
	if len(stages) == 0 {
		return
	}
	current, rest := stages[0], stages[1:]
	d.timer = time.AfterFunc(current.After, func() {
		if !d.current(gen) {
			return
		}
		if current.Run != nil {
			current.Run()
		}

		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen {
			return
		}
		d.armLocked(gen, rest)
	})
}

func (d *Debouncer) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}
