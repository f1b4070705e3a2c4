package usecase

import (
	"sync/atomic"
	"time"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/debounce"
)

// AutosaveHooks are the callbacks driven by Autosave. Flush reports whether
// anything was written; the saved and idle stages only follow a write.
type AutosaveHooks struct {
	Preview func()
	Flush   func() bool
	Status  func(domain.PersistenceStatus)
}

// Autosave turns a burst of document changes into one preview refresh and
// at most one saving, saved, idle indicator cycle.
type Autosave struct {
	debouncer    *debounce.Debouncer
	previewDelay time.Duration
	savedDelay   time.Duration
	idleDelay    time.Duration
	hooks        AutosaveHooks
}

func NewAutosave(previewDelay, savedDelay, idleDelay time.Duration, hooks AutosaveHooks) *Autosave {
	return &Autosave{
		debouncer:    debounce.New(previewDelay),
		previewDelay: previewDelay,
		savedDelay:   savedDelay,
		idleDelay:    idleDelay,
		hooks:        hooks,
	}
}

// Touch restarts the quiet period. Stages of an earlier cycle that have not
// run yet are dropped.
func (a *Autosave) Touch() {
	var flushed atomic.Bool
	a.debouncer.Schedule(
		debounce.Stage{After: a.previewDelay, Run: func() {
			if a.hooks.Preview != nil {
				a.hooks.Preview()
			}
			if a.hooks.Flush != nil {
				flushed.Store(a.hooks.Flush())
			}
		}},
		debounce.Stage{After: a.savedDelay, Run: func() {
			if flushed.Load() {
				a.status(domain.PersistenceSaved)
			}
		}},
		debounce.Stage{After: a.idleDelay, Run: func() {
			if flushed.Load() {
				a.status(domain.PersistenceIdle)
			}
		}},
	)
}

func (a *Autosave) Stop() {
	a.debouncer.Stop()
}

func (a *Autosave) status(status domain.PersistenceStatus) {
	if a.hooks.Status != nil {
		a.hooks.Status(status)
	}
}
