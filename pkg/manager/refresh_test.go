package manager

import (
	"sort"
	"testing"

	"github.com/goliatone/go-enhance/pkg/profile"
)

func remoteItem(name string, interval int) profile.Item {
	item := profile.NewRemoteItem(name, "https://example.com/"+name)
	item.IntervalMinutes = interval
	return item
}

func TestRefresherSyncSchedulesRemoteItemsOnly(t *testing.T) {
	r := newRefresher(func(string) {})
	defer r.stop()

	timed := remoteItem("timed", 60)
	manual := remoteItem("manual", 0)
	local := profile.NewLocalItem("local", "mode: rule\n")

	r.sync([]profile.Item{timed, manual, local})

	active := r.active()
	if len(active) != 1 || active[0] != timed.ID {
		t.Fatalf("expected only the timed remote profile armed, got %v", active)
	}
}

func TestRefresherSyncDropsRemovedProfiles(t *testing.T) {
	r := newRefresher(func(string) {})
	defer r.stop()

	a := remoteItem("a", 30)
	b := remoteItem("b", 30)
	r.sync([]profile.Item{a, b})
	r.sync([]profile.Item{b})

	active := r.active()
	if len(active) != 1 || active[0] != b.ID {
		t.Fatalf("expected only %s armed, got %v", b.ID, active)
	}
}

func TestRefresherSyncRearmsChangedIntervals(t *testing.T) {
	r := newRefresher(func(string) {})
	defer r.stop()

	item := remoteItem("a", 30)
	r.sync([]profile.Item{item})

	item.IntervalMinutes = 60
	r.sync([]profile.Item{item})

	r.mu.Lock()
	period := r.periods[item.ID]
	r.mu.Unlock()
	if period.Minutes() != 60 {
		t.Fatalf("expected rearmed 60m period, got %v", period)
	}
}

func TestRefresherStopIsTerminal(t *testing.T) {
	r := newRefresher(func(string) {})
	r.sync([]profile.Item{remoteItem("a", 30)})
	r.stop()
	r.sync([]profile.Item{remoteItem("b", 30)})

	if active := r.active(); len(active) != 0 {
		sort.Strings(active)
		t.Fatalf("stopped refresher must not arm timers, got %v", active)
	}
}
