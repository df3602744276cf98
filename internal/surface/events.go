// Package surface adapts the map drawing surface to the region store. The
// surface reports geometry without region identity; edits and deletions are
// mapped back to regions by nearest centroid.
package surface

import (
	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
)

// Geometry is one polygon ring as reported by the surface.
type Geometry []dashboard.LatLng

// Event is a drawing-surface event. The concrete types are Created, Edited,
// Deleted, DrawStarted and DrawStopped.
type Event interface {
	isEvent()
	Kind() string
}

// Created reports a completed drawing.
type Created struct {
	Points Geometry
}

// Edited reports reshaped polygons.
type Edited struct {
	Geometries []Geometry
}

// Deleted reports removed polygons.
type Deleted struct {
	Geometries []Geometry
}

// DrawStarted reports that the user entered drawing mode.
type DrawStarted struct{}

// DrawStopped reports that the user left drawing mode without completing.
type DrawStopped struct{}

func (Created) isEvent()     {}
func (Edited) isEvent()      {}
func (Deleted) isEvent()     {}
func (DrawStarted) isEvent() {}
func (DrawStopped) isEvent() {}

func (Created) Kind() string     { return "created" }
func (Edited) Kind() string      { return "edited" }
func (Deleted) Kind() string     { return "deleted" }
func (DrawStarted) Kind() string { return "draw_start" }
func (DrawStopped) Kind() string { return "draw_stop" }

// Shape is one polygon to render.
type Shape struct {
	RegionID string   `json:"id"`
	Name     string   `json:"name"`
	Boundary Geometry `json:"boundary"`
	Color    string   `json:"color"`
	Label    string   `json:"label"`
	Active   bool     `json:"active"`
}
