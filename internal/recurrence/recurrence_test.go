package recurrence

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, rule string, first time.Time) *Series {
	t.Helper()
	s, err := Parse(rule, first)
	if err != nil {
		t.Fatalf("Parse(%q): %v", rule, err)
	}
	return s
}

func dates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format("2006-01-02 15:04")
	}
	return out
}

func equal(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestParseErrors(t *testing.T) {
	first := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	for _, rule := range []string{"", "RRULE:", "INTERVAL=2;COUNT", "FREQ=FORTNIGHTLY"} {
		if _, err := Parse(rule, first); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", rule)
		}
	}
}

func TestBetween(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// Monday 2026-03-02 09:30
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, loc)

	tests := []struct {
		name     string
		rule     string
		first    time.Time
		from, to time.Time
		want     []string
	}{
		{
			name: "daily window",
			rule: "FREQ=DAILY",
			from: time.Date(2026, 3, 10, 12, 0, 0, 0, loc),
			to:   time.Date(2026, 3, 13, 0, 0, 0, 0, loc),
			want: []string{"2026-03-11 09:30", "2026-03-12 09:30"},
		},
		{
			name: "window end is exclusive",
			rule: "RRULE:FREQ=DAILY",
			from: monday,
			to:   monday.Add(48 * time.Hour),
			want: []string{"2026-03-02 09:30", "2026-03-03 09:30"},
		},
		{
			name: "biweekly on two days",
			rule: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TH",
			from: monday,
			to:   time.Date(2026, 3, 31, 0, 0, 0, 0, loc),
			want: []string{"2026-03-02 09:30", "2026-03-05 09:30", "2026-03-16 09:30", "2026-03-19 09:30", "2026-03-30 09:30"},
		},
		{
			name: "count spans the whole series",
			rule: "FREQ=WEEKLY;COUNT=3",
			from: time.Date(2026, 3, 10, 0, 0, 0, 0, loc),
			to:   time.Date(2026, 4, 30, 0, 0, 0, 0, loc),
			want: []string{"2026-03-16 09:30"},
		},
		{
			name: "until is inclusive",
			rule: "FREQ=DAILY;UNTIL=20260304T043000Z",
			from: monday,
			to:   time.Date(2026, 3, 10, 0, 0, 0, 0, loc),
			want: []string{"2026-03-02 09:30", "2026-03-03 09:30", "2026-03-04 09:30"},
		},
		{
			name:  "monthly skips short months",
			rule:  "FREQ=MONTHLY",
			first: time.Date(2026, 1, 31, 18, 0, 0, 0, loc),
			from:  time.Date(2026, 1, 1, 0, 0, 0, 0, loc),
			to:    time.Date(2026, 6, 1, 0, 0, 0, 0, loc),
			want:  []string{"2026-01-31 18:00", "2026-03-31 18:00", "2026-05-31 18:00"},
		},
		{
			name:  "first monday of the month",
			rule:  "FREQ=MONTHLY;BYDAY=1MO",
			first: monday,
			from:  monday,
			to:    time.Date(2026, 6, 1, 0, 0, 0, 0, loc),
			want:  []string{"2026-03-02 09:30", "2026-04-06 09:30", "2026-05-04 09:30"},
		},
		{
			name: "empty window",
			rule: "FREQ=DAILY",
			from: monday,
			to:   monday,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := tt.first
			if first.IsZero() {
				first = monday
			}
			got := dates(mustParse(t, tt.rule, first).Between(tt.from, tt.to))
			if !equal(got, tt.want) {
				t.Errorf("Between = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExclude(t *testing.T) {
	first := time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC)
	s := mustParse(t, "FREQ=DAILY;COUNT=5", first)
	loc := time.FixedZone("UTC+5", 5*3600)
	s.Exclude(time.Date(2026, 3, 4, 9, 30, 0, 0, loc))

	got := dates(s.Between(first, first.Add(30*24*time.Hour)))
	want := []string{"2026-03-02 04:30", "2026-03-03 04:30", "2026-03-05 04:30", "2026-03-06 04:30"}
	if !equal(got, want) {
		t.Errorf("Between = %v, want %v", got, want)
	}
}

func TestBetweenKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	first := time.Date(2026, 3, 6, 9, 0, 0, 0, ny)
	got := mustParse(t, "FREQ=DAILY", first).Between(first, time.Date(2026, 3, 10, 0, 0, 0, 0, ny))
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for _, occ := range got {
		if occ.Hour() != 9 {
			t.Errorf("occurrence %v is not at 09:00 local", occ)
		}
	}
}
