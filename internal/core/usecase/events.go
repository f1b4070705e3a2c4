package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

const subscriberBuffer = 16

// eventHub fans workspace events out to subscribers. A subscriber that
// falls behind misses events instead of blocking the publisher.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan domain.WorkspaceEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan domain.WorkspaceEvent]struct{})}
}

// subscribe registers a channel primed with initial. The channel is closed
// once ctx is done.
func (h *eventHub) subscribe(ctx context.Context, initial domain.WorkspaceEvent) <-chan domain.WorkspaceEvent {
	ch := make(chan domain.WorkspaceEvent, subscriberBuffer)
	ch <- initial

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *eventHub) broadcast(event domain.WorkspaceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *eventHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
