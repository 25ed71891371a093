package trading

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.UTC)
}

func TestNextExpirationKnownDates(t *testing.T) {
	cases := []struct {
		name  string
		today time.Time
		want  string
	}{
		{"monday", date(2024, time.January, 8), "2024-01-10"},
		{"wednesday", date(2024, time.January, 10), "2024-01-12"},
		{"thursday crosses weekend", date(2024, time.January, 11), "2024-01-15"},
		{"friday crosses weekend", date(2024, time.January, 12), "2024-01-16"},
		{"saturday not counted", date(2024, time.January, 13), "2024-01-16"},
		{"sunday not counted", date(2024, time.January, 14), "2024-01-16"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextExpiration(tc.today).Format(expiryDateLayout)
			if got != tc.want {
				t.Errorf("NextExpiration(%s) = %s, want %s", tc.today.Format(expiryDateLayout), got, tc.want)
			}
		})
	}
}

// businessDaysBetween counts Monday-Friday dates in (from, to]
func businessDaysBetween(from, to time.Time) int {
	count := 0
	d := from
	for d.Before(to) {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func TestNextExpirationProperties(t *testing.T) {
	// Six weeks of start dates, covering every weekday plus weekends
	start := date(2024, time.March, 4) // a Monday
	for i := 0; i < 42; i++ {
		today := start.AddDate(0, 0, i)
		got := NextExpiration(today)

		if !got.After(today) {
			t.Errorf("NextExpiration(%v) = %v, not strictly after input", today, got)
		}
		if wd := got.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("NextExpiration(%v) = %v falls on %v", today, got, wd)
		}
		if n := businessDaysBetween(today, got); n != expirationBusinessDays {
			t.Errorf("NextExpiration(%v) = %v spans %d business days, want %d", today, got, n, expirationBusinessDays)
		}

		// Idempotent: same input, same output
		if again := NextExpiration(today); !again.Equal(got) {
			t.Errorf("NextExpiration(%v) not deterministic: %v vs %v", today, got, again)
		}
	}
}
