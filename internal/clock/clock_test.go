package clock

import (
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	result := c.Now()
	after := time.Now()

	assert.False(t, result.Before(before))
	assert.False(t, result.After(after))
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), c.Now())

	c.Advance(-30 * time.Minute)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), c.Now())

	later := time.Date(2025, 12, 24, 23, 59, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClock_ConcurrentAccess(t *testing.T) {
	c := NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 50, 0, time.UTC), c.Now())
}

func TestEnvironmentClock(t *testing.T) {
	zagreb, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	t.Run("unset falls back to system time", func(t *testing.T) {
		t.Setenv("ZET_TEST_NOW", "")
		c := NewEnvironmentClock("ZET_TEST_NOW", zagreb)
		assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	})

	t.Run("zone-less value uses location", func(t *testing.T) {
		t.Setenv("ZET_TEST_NOW", "2025-05-01 14:30")
		c := NewEnvironmentClock("ZET_TEST_NOW", zagreb)
		got := c.Now()
		assert.True(t, time.Date(2025, 5, 1, 14, 30, 0, 0, zagreb).Equal(got))
		assert.Equal(t, zagreb, got.Location())
	})

	t.Run("invalid value falls back", func(t *testing.T) {
		t.Setenv("ZET_TEST_NOW", "yesterday")
		c := NewEnvironmentClock("ZET_TEST_NOW", zagreb)
		assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	})

	t.Run("default variable name", func(t *testing.T) {
		c := NewEnvironmentClock("", zagreb)
		assert.Equal(t, EnvVar, c.envVar)
	})
}

func TestParseTime(t *testing.T) {
	zagreb, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		loc      *time.Location
		expected time.Time
		wantErr  bool
	}{
		{name: "RFC3339", input: "2025-05-01T10:00:00Z", expected: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)},
		{name: "date and time", input: "2025-05-01 10:15:30", loc: zagreb, expected: time.Date(2025, 5, 1, 10, 15, 30, 0, zagreb)},
		{name: "date only", input: " 2025-05-01\n", loc: zagreb, expected: time.Date(2025, 5, 1, 0, 0, 0, 0, zagreb)},
		{name: "no location", input: "2025-05-01", wantErr: true},
		{name: "garbage", input: "soon", loc: zagreb, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input, tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
		})
	}
}
