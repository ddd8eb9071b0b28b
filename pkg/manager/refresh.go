package manager

import (
	"sync"
	"time"

	"github.com/goliatone/go-enhance/pkg/profile"
)

// refresher schedules per-profile refresh timers. Each remote profile
// with a positive interval gets its own timer; an interval of zero means
// manual refresh only.
type refresher struct {
	run func(id string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	periods map[string]time.Duration
	stopped bool
}

func newRefresher(run func(id string)) *refresher {
	return &refresher{
		run:     run,
		timers:  make(map[string]*time.Timer),
		periods: make(map[string]time.Duration),
	}
}

// sync reconciles the timers with the catalog: schedules new remote
// profiles, reschedules changed intervals, and cancels timers whose
// profile is gone or no longer refreshable.
func (r *refresher) sync(items []profile.Item) {
	want := make(map[string]time.Duration, len(items))
	for _, item := range items {
		if item.Kind == profile.KindRemote && item.URL != "" && item.IntervalMinutes > 0 {
			want[item.ID] = time.Duration(item.IntervalMinutes) * time.Minute
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	for id, timer := range r.timers {
		if period, keep := want[id]; !keep || period != r.periods[id] {
			timer.Stop()
			delete(r.timers, id)
			delete(r.periods, id)
		}
	}
	for id, period := range want {
		if _, exists := r.timers[id]; !exists {
			r.schedule(id, period)
		}
	}
}

// schedule arms one timer. The caller holds r.mu.
func (r *refresher) schedule(id string, period time.Duration) {
	r.periods[id] = period
	r.timers[id] = time.AfterFunc(period, func() {
		r.run(id)
		r.reschedule(id)
	})
}

func (r *refresher) reschedule(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	period, ok := r.periods[id]
	if !ok {
		return
	}
	r.timers[id] = time.AfterFunc(period, func() {
		r.run(id)
		r.reschedule(id)
	})
}

// stop cancels every timer. A stopped refresher stays stopped.
func (r *refresher) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
		delete(r.periods, id)
	}
}

// active returns the profile ids with an armed timer, for tests.
func (r *refresher) active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.timers))
	for id := range r.timers {
		out = append(out, id)
	}
	return out
}
