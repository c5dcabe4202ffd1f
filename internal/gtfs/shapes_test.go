package gtfs

import (
	"testing"

	"github.com/OneBusAway/go-gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

func TestComputeRegionBounds(t *testing.T) {
	feed := loadMiniFeed(t)

	bounds := ComputeRegionBounds(feed.Data.Shapes, feed.Data.Stops)
	require.NotNil(t, bounds)

	assert.InDelta(t, 45.79515, bounds.Lat, 1e-6)
	assert.InDelta(t, 15.9623, bounds.Lon, 1e-6)
	assert.InDelta(t, 0.0403, bounds.LatSpan, 1e-6)
	assert.InDelta(t, 0.0554, bounds.LonSpan, 1e-6)
}

func TestComputeRegionBounds_Empty(t *testing.T) {
	assert.Nil(t, ComputeRegionBounds(nil, nil))
	assert.Nil(t, ComputeRegionBounds(nil, []gtfs.Stop{{Id: "no-coords"}}))
}

func TestRouteShape(t *testing.T) {
	feed := loadMiniFeed(t)

	shape, ok := feed.RouteShape("6")
	require.True(t, ok)
	assert.Equal(t, "S6", shape.ShapeID)
	assert.Equal(t, 4, shape.Points)

	coords, rest, err := polyline.DecodeCoords([]byte(shape.Polyline))
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, coords, 4)
	assert.InDelta(t, 45.8153, coords[0][0], 1e-5)
	assert.InDelta(t, 15.9821, coords[3][1], 1e-5)

	_, ok = feed.RouteShape("109")
	assert.False(t, ok, "109 trips have no shape")
}
