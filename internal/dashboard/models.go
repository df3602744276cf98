// Package dashboard holds the region data model and the pure functions that
// derive a region's display color from its rules and aggregate value.
package dashboard

import (
	"sort"

	"github.com/i474232898/weather-region-dashboard/internal/weather"
)

// Boundary point count limits for a region polygon.
const (
	MinBoundaryPoints = 3
	MaxBoundaryPoints = 12
)

// Fixed colors used when no rule applies.
const (
	NeutralColor = "#808080" // no data
	DefaultColor = "#3388ff" // data present, no rule matched
)

// TimeRange is the active time window.
type TimeRange = weather.TimeRange

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Location converts the point to a weather fetch location.
func (p LatLng) Location() weather.Location {
	return weather.Location{Lat: p.Lat, Lon: p.Lng}
}

// DataSource names the weather metric a region displays.
type DataSource string

const (
	DataSourceTemperature2m DataSource = DataSource(weather.MetricTemperature2m)
)

// Metric returns the provider metric for the data source.
func (d DataSource) Metric() weather.Metric {
	if d == "" {
		return weather.MetricTemperature2m
	}
	return weather.Metric(d)
}

// Operator is a comparison used by a ColorRule.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// ColorRule maps values satisfying Operator/Threshold to Color.
type ColorRule struct {
	ID        string   `json:"id"`
	Operator  Operator `json:"operator" validate:"oneof=< <= = > >="`
	Threshold float64  `json:"value"`
	Color     string   `json:"color" validate:"required"`
}

// DefaultRules returns the low/mid/high band rules attached to new regions.
// Callers own the returned slice.
func DefaultRules() []ColorRule {
	return []ColorRule{
		{ID: "1", Operator: OpLess, Threshold: 10, Color: "#ff4d4d"},
		{ID: "2", Operator: OpLess, Threshold: 25, Color: "#ffff4d"},
		{ID: "3", Operator: OpLess, Threshold: 30, Color: "#4da6ff"},
	}
}

// Region is a user-drawn polygon with its rules and derived display state.
type Region struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Boundary     []LatLng    `json:"latlngs"`
	Centroid     LatLng      `json:"centroid"`
	DataSource   DataSource  `json:"dataSource"`
	Rules        []ColorRule `json:"rules"`
	CurrentValue *float64    `json:"currentValue"`
	DisplayColor string      `json:"displayColor"`
}

// HasCentroid reports whether the region has a usable fetch location.
func (r Region) HasCentroid() bool {
	return len(r.Boundary) > 0
}

// Clone returns a deep copy of the region.
func (r Region) Clone() Region {
	c := r
	c.Boundary = append([]LatLng(nil), r.Boundary...)
	c.Rules = append([]ColorRule(nil), r.Rules...)
	if r.CurrentValue != nil {
		v := *r.CurrentValue
		c.CurrentValue = &v
	}
	return c
}

// State is the full dashboard state owned by the region store.
type State struct {
	TimeRange      TimeRange         `json:"timeRange"`
	Regions        map[string]Region `json:"polygons"`
	ActiveRegionID string            `json:"activePolygonId"`
	IsDrawing      bool              `json:"isDrawing"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	c.Regions = make(map[string]Region, len(s.Regions))
	for id, r := range s.Regions {
		c.Regions[id] = r.Clone()
	}
	return c
}

// RegionIDs returns region ids in ascending order, giving callers a stable
// iteration order over the map.
func (s State) RegionIDs() []string {
	ids := make([]string, 0, len(s.Regions))
	for id := range s.Regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SameValue reports whether two optional values are equal.
func SameValue(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
