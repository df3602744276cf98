package surface

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/store"
)

func ring(lat, lng float64, n int) Geometry {
	g := make(Geometry, n)
	for i := range g {
		g[i] = dashboard.LatLng{Lat: lat + float64(i%2)*0.2, Lng: lng + float64(i/2)*0.2}
	}
	return g
}

func newTestReconciler() (*Reconciler, *store.RegionStore) {
	var n int
	s := store.NewRegionStore(dashboard.State{}, store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}))
	return NewReconciler(s, 0, nil), s
}

func TestCreatedAddsRegion(t *testing.T) {
	r, s := newTestReconciler()
	on := true
	s.ToggleDrawing(&on)

	res, err := r.Apply(Created{Points: ring(10, 10, 4)})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, res.Created)

	st := s.Snapshot()
	require.Contains(t, st.Regions, "r1")
	assert.Equal(t, "r1", st.ActiveRegionID)
	assert.False(t, st.IsDrawing)
}

func TestCreatedRejectsInvalidPointCount(t *testing.T) {
	for _, n := range []int{2, 13} {
		t.Run(fmt.Sprintf("%d points", n), func(t *testing.T) {
			r, s := newTestReconciler()
			_, err := r.Apply(Created{Points: ring(10, 10, n)})
			assert.ErrorIs(t, err, store.ErrInvalidGeometry)
			assert.Empty(t, s.Snapshot().Regions)
		})
	}
}

func TestEditedUpdatesNearestRegion(t *testing.T) {
	r, s := newTestReconciler()
	_, err := r.Apply(Created{Points: ring(10, 10, 4)})
	require.NoError(t, err)
	_, err = r.Apply(Created{Points: ring(20, 20, 4)})
	require.NoError(t, err)

	moved := ring(10.1, 10.1, 5)
	res, err := r.Apply(Edited{Geometries: []Geometry{moved}})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, res.Updated)
	assert.Zero(t, res.Discarded)

	got, _ := s.Region("r1")
	assert.Equal(t, []dashboard.LatLng(moved), got.Boundary)
	assert.Equal(t, dashboard.Centroid(moved), got.Centroid)

	untouched, _ := s.Region("r2")
	assert.Equal(t, []dashboard.LatLng(ring(20, 20, 4)), untouched.Boundary)
}

func TestEditedBeyondToleranceIsDiscarded(t *testing.T) {
	r, s := newTestReconciler()
	_, err := r.Apply(Created{Points: ring(10, 10, 4)})
	require.NoError(t, err)
	before := s.Snapshot()

	res, err := r.Apply(Edited{Geometries: []Geometry{ring(12, 12, 4)}})
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, before, s.Snapshot())
}

func TestEditedWithInvalidPointCountIsDiscarded(t *testing.T) {
	r, s := newTestReconciler()
	_, err := r.Apply(Created{Points: ring(10, 10, 4)})
	require.NoError(t, err)
	before := s.Snapshot()

	res, err := r.Apply(Edited{Geometries: []Geometry{ring(10, 10, 2)}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, before, s.Snapshot())
}

func TestDeletedRemovesMatchedRegions(t *testing.T) {
	r, s := newTestReconciler()
	for _, lat := range []float64{10, 20, 30} {
		_, err := r.Apply(Created{Points: ring(lat, lat, 4)})
		require.NoError(t, err)
	}

	res, err := r.Apply(Deleted{Geometries: []Geometry{ring(10, 10, 4), ring(30, 30, 4), ring(50, 50, 4)}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r3"}, res.Deleted)
	assert.Equal(t, 1, res.Discarded)

	st := s.Snapshot()
	assert.Len(t, st.Regions, 1)
	assert.Contains(t, st.Regions, "r2")
	// r3 was active and is gone.
	assert.Empty(t, st.ActiveRegionID)
}

func TestDrawLifecycleEvents(t *testing.T) {
	r, s := newTestReconciler()

	_, err := r.Apply(DrawStarted{})
	require.NoError(t, err)
	assert.True(t, s.Snapshot().IsDrawing)

	_, err = r.Apply(DrawStopped{})
	require.NoError(t, err)
	assert.False(t, s.Snapshot().IsDrawing)
}

type unknownEvent struct{ DrawStarted }

func (unknownEvent) Kind() string { return "unknown" }

func TestUnknownEvent(t *testing.T) {
	r, _ := newTestReconciler()
	_, err := r.Apply(unknownEvent{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestShapesRenderColorsAndLabels(t *testing.T) {
	r, s := newTestReconciler()
	_, err := r.Apply(Created{Points: ring(10, 10, 4)})
	require.NoError(t, err)
	_, err = r.Apply(Created{Points: ring(20, 20, 3)})
	require.NoError(t, err)

	v := 21.5
	s.UpdateRegionData("r1", &v, "#ffff4d")

	shapes := r.Shapes()
	require.Len(t, shapes, 2)

	assert.Equal(t, "r1", shapes[0].RegionID)
	assert.Equal(t, "#ffff4d", shapes[0].Color)
	assert.Equal(t, "21.50°C", shapes[0].Label)
	assert.False(t, shapes[0].Active)
	assert.Len(t, shapes[0].Boundary, 4)

	assert.Equal(t, dashboard.NeutralColor, shapes[1].Color)
	assert.Equal(t, "Loading...", shapes[1].Label)
	assert.True(t, shapes[1].Active)
}
