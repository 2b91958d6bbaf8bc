package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/recurrence"
)

// RecurrenceHorizon is how far ahead recurring events are expanded. It
// covers the largest reminder threshold with room for the upcoming list.
const RecurrenceHorizon = 8 * 24 * time.Hour

// ICS reads events from an iCalendar feed.
type ICS struct {
	cache
	url    string
	loc    *time.Location
	client *http.Client
	now    func() time.Time
}

// NewICS returns a source for the calendar at url. Start times are shown in
// loc; nil means time.Local.
func NewICS(url string, loc *time.Location, opts ...Option) *ICS {
	if loc == nil {
		loc = time.Local
	}
	return &ICS{url: url, loc: loc, client: newClient(opts), now: time.Now}
}

func (s *ICS) Refresh(ctx context.Context) error {
	body, err := get(ctx, s.client, s.url, "text/calendar")
	if err != nil {
		err = fmt.Errorf("fetch calendar: %w", err)
		s.fail(err)
		return err
	}

	events, err := ParseICS(body, s.loc, s.now())
	if err != nil {
		s.fail(err)
		return err
	}
	s.store(events)
	return nil
}

// vevent is one parsed VEVENT before expansion.
type vevent struct {
	base     model.Event
	start    time.Time
	allDay   bool
	rule     string
	exdates  []time.Time
	override string
}

// ParseICS maps the VEVENTs of an iCalendar payload to events. Start times
// are converted to loc and written in the same date and time shape the
// events API uses. VEVENTs without a UID or DTSTART are skipped.
//
// A recurring VEVENT becomes one event per occurrence starting within
// RecurrenceHorizon after now, each with the id "UID/YYYYMMDDTHHMM"
// ("UID/YYYYMMDD" for all-day series). EXDATEs are dropped and
// RECURRENCE-ID instances replace the occurrence they modify. A rule that
// cannot be parsed leaves only the first occurrence.
func ParseICS(body []byte, loc *time.Location, now time.Time) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty calendar body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var parsed []vevent
	overridden := make(map[string]bool)
	for _, ve := range cal.Events() {
		v, ok := parseVEvent(ve, loc)
		if !ok {
			continue
		}
		if v.override != "" {
			overridden[v.override] = true
		}
		parsed = append(parsed, v)
	}

	var events []model.Event
	for _, v := range parsed {
		if v.override != "" {
			v.base.ID = v.override
			events = append(events, withStart(v.base, v.start, v.allDay, loc))
			continue
		}
		if v.rule == "" {
			events = append(events, withStart(v.base, v.start, v.allDay, loc))
			continue
		}

		series, err := recurrence.Parse(v.rule, v.start)
		if err != nil {
			events = append(events, withStart(v.base, v.start, v.allDay, loc))
			continue
		}
		series.Exclude(v.exdates...)
		for _, occ := range series.Between(now, now.Add(RecurrenceHorizon)) {
			id := occurrenceID(v.base.ID, occ, v.allDay)
			if overridden[id] {
				continue
			}
			ev := withStart(v.base, occ, v.allDay, loc)
			ev.ID = id
			events = append(events, ev)
		}
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (vevent, bool) {
	var v vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return v, false
	}
	v.base.ID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		v.base.Title = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		v.base.Location = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		if strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
			v.base.Status = model.FlagStatus(false)
		} else {
			v.base.Status = model.FlagStatus(true)
		}
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return v, false
	}

	if isAllDay(dtStart) {
		day, ok := parseDate(dtStart.Value, loc)
		if !ok {
			return v, false
		}
		v.start = day
		v.allDay = true
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return v, false
		}
		v.start = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		v.rule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, val := range strings.Split(p.Value, ",") {
			if t, ok := parseInstant(strings.TrimSpace(val), p, loc); ok {
				v.exdates = append(v.exdates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, ok := parseInstant(p.Value, p, loc); ok {
			v.override = occurrenceID(v.base.ID, t, isAllDay(p))
		}
	}
	return v, true
}

// withStart writes start into ev's date and time fields. All-day events
// carry no time.
func withStart(ev model.Event, start time.Time, allDay bool, loc *time.Location) model.Event {
	if allDay {
		ev.Date = start.Format("2006-01-02") + "T00:00:00.000Z"
		ev.Time = ""
		return ev
	}
	start = start.In(loc)
	ev.Date = start.Format("2006-01-02") + "T00:00:00.000Z"
	ev.Time = "1970-01-01T" + start.Format("15:04") + ":00.000Z"
	return ev
}

func occurrenceID(uid string, start time.Time, allDay bool) string {
	if allDay {
		return uid + "/" + start.Format("20060102")
	}
	return uid + "/" + start.UTC().Format("20060102T1504")
}

// parseInstant reads a DATE or DATE-TIME property value, honoring TZID.
func parseInstant(val string, p *ical.IANAProperty, loc *time.Location) (time.Time, bool) {
	if isAllDay(p) || !strings.Contains(val, "T") {
		return parseDate(val, loc)
	}
	if strings.HasSuffix(val, "Z") {
		t, err := time.Parse("20060102T150405Z", val)
		return t, err == nil
	}
	zone := loc
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if l, err := time.LoadLocation(tz[0]); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", val, zone)
	return t, err == nil
}

func parseDate(val string, loc *time.Location) (time.Time, bool) {
	day, err := time.ParseInLocation("20060102", val[:min(8, len(val))], loc)
	return day, err == nil
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
