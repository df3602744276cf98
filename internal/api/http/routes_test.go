package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/store"
	"github.com/i474232898/weather-region-dashboard/internal/surface"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh() { r.calls.Add(1) }

type testServer struct {
	app       *fiber.App
	store     *store.RegionStore
	refresher *countingRefresher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var n int
	s := store.NewRegionStore(dashboard.State{}, store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}))
	refresher := &countingRefresher{}
	tl := dashboard.NewTimeline(time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), 15, time.UTC)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_total", Help: "test"}))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, Dependencies{
		Store:     s,
		Surface:   surface.NewReconciler(s, 0, nil),
		Refresher: refresher,
		Timeline:  func() dashboard.Timeline { return tl },
		Gatherer:  reg,
	})
	return &testServer{app: app, store: s, refresher: refresher}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const square = `[{"lat":10,"lng":10},{"lat":10,"lng":11},{"lat":11,"lng":11},{"lat":11,"lng":10}]`

func TestCreatedEventAddsRegion(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"created","geometries":[`+square+`]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res surface.Result
	decode(t, resp, &res)
	assert.Equal(t, []string{"r1"}, res.Created)

	st := ts.store.Snapshot()
	require.Contains(t, st.Regions, "r1")
	assert.Equal(t, "r1", st.ActiveRegionID)
	assert.Equal(t, dashboard.LatLng{Lat: 10.5, Lng: 10.5}, st.Regions["r1"].Centroid)
}

func TestCreatedEventRejectsBadGeometry(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/surface/events",
		`{"type":"created","geometries":[[{"lat":1,"lng":1},{"lat":2,"lng":2}]]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, true, body["error"])
	assert.Empty(t, ts.store.Snapshot().Regions)
}

func TestUnknownEventType(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"moved"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditedAndDeletedEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"created","geometries":[`+square+`]}`)

	moved := `[{"lat":10.1,"lng":10},{"lat":10.1,"lng":11},{"lat":11.1,"lng":11},{"lat":11.1,"lng":10}]`
	resp := ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"edited","geometries":[`+moved+`]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res surface.Result
	decode(t, resp, &res)
	assert.Equal(t, []string{"r1"}, res.Updated)
	assert.InDelta(t, 10.6, ts.store.Snapshot().Regions["r1"].Centroid.Lat, 1e-9)

	far := `[{"lat":50,"lng":50},{"lat":50,"lng":51},{"lat":51,"lng":51}]`
	resp = ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"deleted","geometries":[`+far+`]}`)
	res = surface.Result{}
	decode(t, resp, &res)
	assert.Equal(t, 1, res.Discarded)
	assert.Len(t, ts.store.Snapshot().Regions, 1)

	resp = ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"deleted","geometries":[`+moved+`]}`)
	res = surface.Result{}
	decode(t, resp, &res)
	assert.Equal(t, []string{"r1"}, res.Deleted)
	assert.Empty(t, ts.store.Snapshot().Regions)
}

func TestDrawingLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"draw_start"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ts.store.Snapshot().IsDrawing)

	resp = ts.do(t, http.MethodPost, "/api/v1/drawing", "")
	var body map[string]bool
	decode(t, resp, &body)
	assert.False(t, body["isDrawing"])

	resp = ts.do(t, http.MethodPost, "/api/v1/drawing", `{"drawing":true}`)
	body = nil
	decode(t, resp, &body)
	assert.True(t, body["isDrawing"])
}

func TestTimeRange(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/v1/time-range",
		`{"start":"2024-03-10T00:00:00Z","end":"2024-03-10T06:00:00Z"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := ts.store.Snapshot()
	assert.True(t, st.TimeRange.Start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, st.TimeRange.End.Equal(time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)))

	resp = ts.do(t, http.MethodPut, "/api/v1/time-range",
		`{"start":"2024-03-10T06:00:00Z","end":"2024-03-10T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The timeline spans 2024-03-05 to 2024-04-04.
	resp = ts.do(t, http.MethodPut, "/api/v1/time-range",
		`{"start":"2024-03-01T00:00:00Z","end":"2024-03-02T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, ts.store.Snapshot().TimeRange.Start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))

	resp = ts.do(t, http.MethodPut, "/api/v1/time-range", `{"start":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTimeline(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/timeline", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tl dashboard.Timeline
	decode(t, resp, &tl)
	assert.True(t, tl.Start.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.True(t, tl.End.Equal(time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)))
}

func TestRegionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"created","geometries":[`+square+`]}`)

	resp := ts.do(t, http.MethodPut, "/api/v1/regions/r1/name", `{"name":"Harbor"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Harbor", ts.store.Snapshot().Regions["r1"].Name)

	resp = ts.do(t, http.MethodPut, "/api/v1/regions/r1/rules",
		`{"rules":[{"operator":">=","value":0,"color":"#00ff00"}]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	rules := ts.store.Snapshot().Regions["r1"].Rules
	require.Len(t, rules, 1)
	assert.NotEmpty(t, rules[0].ID)
	assert.Equal(t, dashboard.OpGreaterEqual, rules[0].Operator)

	resp = ts.do(t, http.MethodPut, "/api/v1/regions/r1/rules",
		`{"rules":[{"operator":"!=","value":0,"color":"#00ff00"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown ids are ignored even when the rules are invalid.
	resp = ts.do(t, http.MethodPut, "/api/v1/regions/missing/rules",
		`{"rules":[{"operator":"!=","value":0,"color":""}]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/api/v1/regions/active", `{"id":null}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, ts.store.Snapshot().ActiveRegionID)

	resp = ts.do(t, http.MethodPut, "/api/v1/regions/active", `{"id":"r1"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "r1", ts.store.Snapshot().ActiveRegionID)

	resp = ts.do(t, http.MethodDelete, "/api/v1/regions/r1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	st := ts.store.Snapshot()
	assert.Empty(t, st.Regions)
	assert.Empty(t, st.ActiveRegionID)

	// Unknown ids are ignored.
	resp = ts.do(t, http.MethodDelete, "/api/v1/regions/missing", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStateAndShapes(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/surface/events", `{"type":"created","geometries":[`+square+`]}`)

	resp := ts.do(t, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	st, err := dashboard.DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Contains(t, st.Regions, "r1")
	assert.Equal(t, "r1", st.ActiveRegionID)

	resp = ts.do(t, http.MethodGet, "/api/v1/surface/shapes", "")
	var body struct {
		Shapes []surface.Shape `json:"shapes"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Shapes, 1)
	assert.Equal(t, "Loading...", body.Shapes[0].Label)
	assert.Equal(t, dashboard.NeutralColor, body.Shapes[0].Color)
	assert.True(t, body.Shapes[0].Active)
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.EqualValues(t, 1, ts.refresher.calls.Load())
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "test_counter_total")
}
