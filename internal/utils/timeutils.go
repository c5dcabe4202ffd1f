package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClockTime parses a GTFS "HH:MM:SS" or "HH:MM" value into seconds past
// midnight of the service day. Hours may exceed 23.
func ParseClockTime(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	values := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		values[i] = n
	}
	return values[0]*3600 + values[1]*60 + values[2], true
}

// FormatClock renders service-day seconds as "HH:MM", keeping hours past 24.
func FormatClock(seconds int) string {
	if seconds < 0 {
		return "-"
	}
	return fmt.Sprintf("%02d:%02d", seconds/3600, (seconds%3600)/60)
}

// SecondsSinceMidnight returns wall-clock seconds of t in its own location.
func SecondsSinceMidnight(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// ServiceDate truncates t to midnight in its location.
func ServiceDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate compares calendar dates ignoring time of day and location.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
