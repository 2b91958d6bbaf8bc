package reminder

import (
	"fmt"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
)

// Snapshot maps a threshold key to the remaining time observed for one
// event on the previous tick.
type Snapshot map[string]time.Duration

// Fire is the effect of one threshold crossing: deliver a notification for
// Key, then alert. Previous and FirstEncounter let the tracker undo the
// crossing when delivery fails.
type Fire struct {
	Key            string
	EventID        string
	EventTitle     string
	Location       string
	Threshold      Threshold
	Start          time.Time
	Remaining      time.Duration
	Previous       time.Duration
	FirstEncounter bool
}

// Notification renders the feed entry for this crossing.
func (f Fire) Notification() model.Notification {
	start := f.Start
	return model.Notification{
		Title:      model.NotifTitleEventComing,
		Body:       fmt.Sprintf("%s left • %s", f.Threshold.Label, f.EventTitle),
		EventID:    f.EventID,
		Location:   f.Location,
		FireKey:    f.Key,
		EventStart: &start,
	}
}

// Evaluate decides which thresholds of ev fire at now. It has no side
// effects: the caller stores the returned snapshot and applies the returned
// effects. start must be after now.
//
// A nil prev marks the first encounter. Every threshold is baselined and only
// the tightest threshold already reached may fire, so an event first seen
// two hours out does not replay its 1d, 12h and 6h reminders.
//
// With a prev snapshot, every threshold crossed since the last tick fires,
// so a stalled clock that skips several boundaries reports each of them.
func Evaluate(ev model.Event, start, now time.Time, prev Snapshot, thresholds []Threshold, fired func(key string) bool) (Snapshot, []Fire) {
	remaining := start.Sub(now)

	next := make(Snapshot, len(thresholds))
	for _, th := range thresholds {
		next[th.Key] = remaining
	}

	newFire := func(th Threshold, previous time.Duration, first bool) Fire {
		return Fire{
			Key:            model.FiredKey(ev.ID, th.Key),
			EventID:        ev.ID,
			EventTitle:     ev.Title,
			Location:       ev.Location,
			Threshold:      th,
			Start:          start,
			Remaining:      remaining,
			Previous:       previous,
			FirstEncounter: first,
		}
	}

	if prev == nil {
		closest := -1
		for i, th := range thresholds {
			if remaining > th.Duration {
				continue
			}
			if closest < 0 || th.Duration <= thresholds[closest].Duration {
				closest = i
			}
		}
		if closest < 0 {
			return next, nil
		}
		th := thresholds[closest]
		if fired(model.FiredKey(ev.ID, th.Key)) {
			return next, nil
		}
		return next, []Fire{newFire(th, remaining, true)}
	}

	var fires []Fire
	for _, th := range thresholds {
		p, ok := prev[th.Key]
		if !ok {
			// Threshold unknown at the last tick; this tick is its baseline.
			continue
		}
		if p > th.Duration && remaining <= th.Duration && !fired(model.FiredKey(ev.ID, th.Key)) {
			fires = append(fires, newFire(th, p, false))
		}
	}
	return next, fires
}
