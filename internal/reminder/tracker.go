package reminder

import (
	"time"

	"github.com/dukerupert/eventbell/internal/model"
)

// TrackState is the lifecycle state of one event inside a Tracker.
type TrackState int

const (
	Unseen TrackState = iota
	Tracking
)

func (s TrackState) String() string {
	if s == Tracking {
		return "tracking"
	}
	return "unseen"
}

// Tracker owns the per-event snapshots carried between ticks. An event moves
// from Unseen to Tracking on its first evaluation; it drops back to Unseen
// when it becomes unusable (unparsable date, already started, or missing
// from the list) so a later reappearance counts as a first encounter.
type Tracker struct {
	thresholds []Threshold
	loc        *time.Location
	events     map[string]Snapshot
}

func NewTracker(thresholds []Threshold, loc *time.Location) *Tracker {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{
		thresholds: thresholds,
		loc:        loc,
		events:     make(map[string]Snapshot),
	}
}

// State reports the lifecycle state of eventID.
func (t *Tracker) State(eventID string) TrackState {
	if _, ok := t.events[eventID]; ok {
		return Tracking
	}
	return Unseen
}

// Len returns the number of tracked events.
func (t *Tracker) Len() int {
	return len(t.events)
}

// Step evaluates events in list order at now and returns the crossings in
// order. Snapshots are updated as a side effect.
func (t *Tracker) Step(events []model.Event, now time.Time, fired func(key string) bool) []Fire {
	present := make(map[string]struct{}, len(events))
	var fires []Fire

	for _, ev := range events {
		if ev.ID == "" || ev.Title == "" {
			continue
		}
		present[ev.ID] = struct{}{}
		if !model.IsActive(ev) {
			continue
		}

		start, ok := EventStart(ev, t.loc)
		if !ok {
			delete(t.events, ev.ID)
			continue
		}
		if !start.After(now) {
			delete(t.events, ev.ID)
			continue
		}

		next, out := Evaluate(ev, start, now, t.events[ev.ID], t.thresholds, fired)
		t.events[ev.ID] = next
		fires = append(fires, out...)
	}

	for id := range t.events {
		if _, ok := present[id]; !ok {
			delete(t.events, id)
		}
	}
	return fires
}

// Rollback undoes the snapshot change behind f so the same crossing is
// detected again on the next tick.
func (t *Tracker) Rollback(f Fire) {
	if f.FirstEncounter {
		delete(t.events, f.EventID)
		return
	}
	if snap, ok := t.events[f.EventID]; ok {
		snap[f.Threshold.Key] = f.Previous
	}
}
