package scraper

import (
	"testing"
	"time"
)

func TestParseRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2 mins ago", now.Add(-2 * time.Minute)},
		{"45 seconds ago", now.Add(-45 * time.Second)},
		{"an hour ago", now.Add(-time.Hour)},
		{"3 hours  ago", now.Add(-3 * time.Hour)},
		{"2 hours, 5 minutes ago", now.Add(-2*time.Hour - 5*time.Minute)},
		{"1 day 3 hours ago", now.Add(-27 * time.Hour)},
		{"a day ago", now.AddDate(0, 0, -1)},
		{"yesterday", now.AddDate(0, 0, -1)},
		{"2 weeks ago", now.AddDate(0, 0, -14)},
		{"1 month ago", now.AddDate(0, -1, 0)},
		{"2 years ago", now.AddDate(-2, 0, 0)},
	}
	for _, tc := range cases {
		got := ParseRelativeTime(tc.in, now)
		if got == nil {
			t.Fatalf("%q: ожидали время, получили nil", tc.in)
		}
		if diff := got.Sub(tc.want); diff > time.Second || diff < -time.Second {
			t.Fatalf("%q: ожидали %s, получили %s", tc.in, tc.want, got)
		}
	}
}

func TestParseRelativeTimeAbsoluteDates(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	cases := map[string]time.Time{
		"April 20, 2026":   time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		"Apr 20, 2026":     time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		"2026-04-20":       time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC),
		"5 September 2025": time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got := ParseRelativeTime(in, now)
		if got == nil {
			t.Fatalf("%q: ожидали дату, получили nil", in)
		}
		y, m, d := got.UTC().Date()
		if y != want.Year() || m != want.Month() || d != want.Day() {
			t.Fatalf("%q: ожидали %s, получили %s", in, want.Format("2006-01-02"), got)
		}
	}
}

func TestParseRelativeTimeUnknown(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t", "qwertyuiop"} {
		if got := ParseRelativeTime(in, time.Now()); got != nil {
			t.Fatalf("%q: ожидали nil, получили %s", in, got)
		}
	}
}
