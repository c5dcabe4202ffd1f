package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		ok       bool
	}{
		{"08:05:30", 8*3600 + 5*60 + 30, true},
		{"8:05", 8*3600 + 5*60, true},
		{"25:10:00", 25*3600 + 10*60, true},
		{" 00:00:00 ", 0, true},
		{"", 0, false},
		{"12", 0, false},
		{"aa:bb:cc", 0, false},
		{"1:2:3:4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseClockTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "08:05", FormatClock(8*3600+5*60+59))
	assert.Equal(t, "25:10", FormatClock(25*3600+10*60))
	assert.Equal(t, "-", FormatClock(-1))
}

func TestServiceDateHelpers(t *testing.T) {
	ts := time.Date(2025, 6, 2, 17, 45, 12, 0, time.UTC)

	assert.Equal(t, 17*3600+45*60+12, SecondsSinceMidnight(ts))
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), ServiceDate(ts))
	assert.True(t, SameDate(ts, time.Date(2025, 6, 2, 1, 0, 0, 0, time.FixedZone("X", 3600))))
	assert.False(t, SameDate(ts, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)))
}
