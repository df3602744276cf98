package surface

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/store"
)

// ErrUnknownEvent is returned for event types the reconciler does not handle.
var ErrUnknownEvent = errors.New("unknown surface event")

// Store is the part of the region store the reconciler mutates.
type Store interface {
	Snapshot() dashboard.State
	AddRegion(boundary []dashboard.LatLng, source dashboard.DataSource) (dashboard.Region, error)
	UpdateRegionBoundary(id string, boundary []dashboard.LatLng) error
	DeleteRegion(id string)
	ToggleDrawing(force *bool)
}

// Result summarizes what an event did.
type Result struct {
	Created   []string `json:"created,omitempty"`
	Updated   []string `json:"updated,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
	Discarded int      `json:"discarded"`
}

// Reconciler applies surface events to the store.
type Reconciler struct {
	store     Store
	source    dashboard.DataSource
	tolerance float64
	log       *slog.Logger
}

// NewReconciler creates a reconciler. A non-positive tolerance selects
// dashboard.DefaultMatchTolerance.
func NewReconciler(s Store, tolerance float64, log *slog.Logger) *Reconciler {
	if tolerance <= 0 {
		tolerance = dashboard.DefaultMatchTolerance
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:     s,
		source:    dashboard.DataSourceTemperature2m,
		tolerance: tolerance,
		log:       log,
	}
}

// Apply maps ev onto store operations. Created geometries outside the 3–12
// point range are rejected with store.ErrInvalidGeometry and the store is
// left unchanged. Edited or deleted geometries with no region within
// tolerance are discarded silently.
func (r *Reconciler) Apply(ev Event) (Result, error) {
	switch e := ev.(type) {
	case Created:
		return r.created(e)
	case Edited:
		return r.edited(e), nil
	case Deleted:
		return r.deleted(e), nil
	case DrawStarted:
		on := true
		r.store.ToggleDrawing(&on)
		return Result{}, nil
	case DrawStopped:
		off := false
		r.store.ToggleDrawing(&off)
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (r *Reconciler) created(e Created) (Result, error) {
	region, err := r.store.AddRegion(e.Points, r.source)
	if err != nil {
		r.log.Warn("created geometry rejected", "points", len(e.Points), "error", err)
		return Result{}, err
	}
	return Result{Created: []string{region.ID}}, nil
}

func (r *Reconciler) edited(e Edited) Result {
	var res Result
	for _, g := range e.Geometries {
		m, ok := r.match(g)
		if !ok {
			res.Discarded++
			continue
		}
		if err := r.store.UpdateRegionBoundary(m.RegionID, g); err != nil {
			r.log.Warn("edited geometry rejected", "region_id", m.RegionID, "points", len(g), "error", err)
			res.Discarded++
			continue
		}
		res.Updated = append(res.Updated, m.RegionID)
	}
	return res
}

func (r *Reconciler) deleted(e Deleted) Result {
	var res Result
	for _, g := range e.Geometries {
		m, ok := r.match(g)
		if !ok {
			res.Discarded++
			continue
		}
		r.store.DeleteRegion(m.RegionID)
		res.Deleted = append(res.Deleted, m.RegionID)
	}
	return res
}

// match finds the region a reported geometry belongs to, using the state as
// of this geometry so earlier geometries in the same event are visible.
func (r *Reconciler) match(g Geometry) (dashboard.Match, bool) {
	c := dashboard.Centroid(g)
	m, ok := dashboard.NearestRegion(r.store.Snapshot(), c, r.tolerance)
	if !ok {
		r.log.Debug("geometry matched no region", "centroid_lat", c.Lat, "centroid_lng", c.Lng)
	}
	return m, ok
}

// Shapes returns the render list for the current state, ordered by region id.
func (r *Reconciler) Shapes() []Shape {
	return Render(r.store.Snapshot())
}

// Render converts state into shapes for the surface.
func Render(s dashboard.State) []Shape {
	shapes := make([]Shape, 0, len(s.Regions))
	for _, id := range s.RegionIDs() {
		region := s.Regions[id]
		shapes = append(shapes, Shape{
			RegionID: id,
			Name:     region.Name,
			Boundary: Geometry(region.Boundary),
			Color:    region.DisplayColor,
			Label:    valueLabel(region.CurrentValue),
			Active:   id == s.ActiveRegionID,
		})
	}
	return shapes
}

func valueLabel(v *float64) string {
	if v == nil {
		return "Loading..."
	}
	return fmt.Sprintf("%.2f°C", *v)
}

var _ Store = (*store.RegionStore)(nil)
