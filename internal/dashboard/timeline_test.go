package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeline(t *testing.T) {
	now := time.Date(2024, 3, 20, 17, 45, 0, 0, time.UTC)

	tl := NewTimeline(now, 15, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), tl.Start)
	assert.Equal(t, time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC), tl.End)
	assert.Equal(t, "1h0m0s", tl.Step)
}

func TestNewTimelineUsesLocationMidnight(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Tokyo.
	now := time.Date(2024, 3, 20, 20, 0, 0, 0, time.UTC)
	tl := NewTimeline(now, 1, tokyo)

	assert.True(t, tl.Start.Equal(time.Date(2024, 3, 20, 0, 0, 0, 0, tokyo)))
	assert.True(t, tl.End.Equal(time.Date(2024, 3, 22, 0, 0, 0, 0, tokyo)))
}

func TestTimelineContains(t *testing.T) {
	tl := NewTimeline(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 2, time.UTC)

	inside := TimeRange{Start: tl.Start.Add(time.Hour), End: tl.End}
	assert.True(t, tl.Contains(inside))

	before := TimeRange{Start: tl.Start.Add(-time.Hour), End: tl.Start}
	assert.False(t, tl.Contains(before))
}

func TestInitialState(t *testing.T) {
	tl := NewTimeline(time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC), 15, time.UTC)

	s := InitialState(tl)

	assert.True(t, s.TimeRange.Start.Equal(tl.Start))
	assert.True(t, s.TimeRange.End.Equal(tl.Start))
	assert.NotNil(t, s.Regions)
	assert.Empty(t, s.Regions)
	assert.Empty(t, s.ActiveRegionID)
	assert.False(t, s.IsDrawing)
}
