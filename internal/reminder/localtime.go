package reminder

import (
	"regexp"
	"strconv"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
)

var (
	datePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	clockPart  = regexp.MustCompile(`(?:^|T)(\d{2}):(\d{2})`)
)

// StartLocal derives the wall-clock start of an event in loc from its raw
// date and time strings. Only the YYYY-MM-DD prefix of date and the HH:MM of
// clock are used; any zone suffix is ignored so no offset is ever applied.
// A missing or unreadable clock means midnight. ok is false when date has no
// usable prefix.
func StartLocal(date, clock string, loc *time.Location) (start time.Time, ok bool) {
	if loc == nil {
		loc = time.Local
	}

	dm := datePrefix.FindStringSubmatch(date)
	if dm == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(dm[1])
	mo, _ := strconv.Atoi(dm[2])
	d, _ := strconv.Atoi(dm[3])
	if mo < 1 || mo > 12 || d < 1 || d > daysIn(time.Month(mo), y) {
		return time.Time{}, false
	}

	hh, mm := parseClock(clock)
	return time.Date(y, time.Month(mo), d, hh, mm, 0, 0, loc), true
}

// EventStart is StartLocal applied to an event record.
func EventStart(e model.Event, loc *time.Location) (time.Time, bool) {
	return StartLocal(e.Date, e.Time, loc)
}

func parseClock(clock string) (int, int) {
	m := clockPart.FindStringSubmatch(clock)
	if m == nil {
		return 0, 0
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return 0, 0
	}
	return hh, mm
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
