package gtfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ficojok/ZETdev/internal/testfixtures"
)

// zagreb is CEST; the fixture dates are all in May.
var zagreb = time.FixedZone("CEST", 2*60*60)

func loadMiniFeed(t *testing.T) *StaticFeed {
	t.Helper()
	feed, err := LoadStaticDir(testfixtures.MiniFeedDir(t))
	require.NoError(t, err)
	return feed
}

func at(day time.Time, h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}
