// Package clock abstracts "now" so schedule lookups can be pinned to a fixed
// instant in tests and in scripted runs (ZET_NOW).
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// EnvVar is the variable EnvironmentClock reads by default.
const EnvVar = "ZET_NOW"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a thread-safe, settable clock for tests.
type MockClock struct {
	currentTime time.Time
	mu          sync.Mutex
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the clock by d; negative values move it backwards.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// EnvironmentClock returns the time stored in an environment variable, falling
// back to system time when the variable is unset or unparsable. Values without a
// zone are read in location.
type EnvironmentClock struct {
	envVar   string
	location *time.Location
}

func NewEnvironmentClock(envVar string, location *time.Location) *EnvironmentClock {
	if envVar == "" {
		envVar = EnvVar
	}
	return &EnvironmentClock{envVar: envVar, location: location}
}

func (e *EnvironmentClock) Now() time.Time {
	raw := os.Getenv(e.envVar)
	if raw == "" {
		return time.Now()
	}
	t, err := ParseTime(raw, e.location)
	if err != nil {
		slog.Warn("EnvironmentClock: invalid time, falling back to system time",
			slog.String("envVar", e.envVar), slog.String("error", err.Error()))
		return time.Now()
	}
	return t
}

// ParseTime accepts RFC3339 or a zone-less "YYYY-MM-DD[ HH:MM[:SS]]" read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	if loc == nil {
		return time.Time{}, errors.New("timezone not configured")
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q: expected RFC3339, YYYY-MM-DD HH:MM[:SS] or YYYY-MM-DD", s)
}
