package activity

import (
	"context"
	"sync"
)

// CaptureHook is an in-memory hook for test assertions. Events pass through
// NormalizeEvent before being recorded, so tests observe what a real
// subscriber would. Err, when set, is returned from every Notify call to
// exercise failure paths.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify appends the normalized event and returns the configured error.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// Find returns the first recorded event with the given verb.
func (h *CaptureHook) Find(verb string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, event := range h.Events {
		if event.Verb == verb {
			return event, true
		}
	}
	return Event{}, false
}
