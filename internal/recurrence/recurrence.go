// Package recurrence expands the RRULE of a recurring calendar event into
// the concrete occurrences the reminder engine can track.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// maxOccurrences caps one expansion window.
const maxOccurrences = 5000

// Series is a recurring event anchored at its first start.
type Series struct {
	first time.Time
	set   rrule.Set
}

// Parse builds a series from an RRULE value such as
// "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2". A leading "RRULE:" is accepted.
// Occurrences keep first's location, so the wall clock survives DST changes.
func Parse(rule string, first time.Time) (*Series, error) {
	rule = strings.TrimSpace(rule)
	if len(rule) >= 6 && strings.EqualFold(rule[:6], "RRULE:") {
		rule = rule[6:]
	}
	if rule == "" {
		return nil, fmt.Errorf("empty rule")
	}

	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", rule, err)
	}
	r.DTStart(first)

	s := &Series{first: first}
	s.set.RRule(r)
	return s, nil
}

// Exclude removes occurrences starting at the given instants (EXDATE).
func (s *Series) Exclude(starts ...time.Time) {
	for _, t := range starts {
		s.set.ExDate(t.In(s.first.Location()))
	}
}

// Between returns the starts that fall in [from, to), in order. COUNT and
// UNTIL apply to the whole series, not the window.
func (s *Series) Between(from, to time.Time) []time.Time {
	if !from.Before(to) {
		return nil
	}
	loc := s.first.Location()
	occ := s.set.Between(from.In(loc), to.In(loc), true)

	out := make([]time.Time, 0, len(occ))
	for _, t := range occ {
		if !t.Before(to) {
			break
		}
		out = append(out, t)
		if len(out) == maxOccurrences {
			break
		}
	}
	return out
}
