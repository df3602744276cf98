package httpapi

import (
	"errors"
	"time"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
	"github.com/i474232898/weather-region-dashboard/internal/surface"
)

// timeRangeRequest is the body of PUT /time-range. Instants are RFC 3339.
type timeRangeRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// surfaceEventRequest is one event reported by the drawing surface.
type surfaceEventRequest struct {
	Type       string               `json:"type" validate:"required,oneof=created edited deleted draw_start draw_stop"`
	Geometries [][]dashboard.LatLng `json:"geometries"`
}

func (r surfaceEventRequest) toEvent() (surface.Event, error) {
	switch r.Type {
	case "created":
		if len(r.Geometries) != 1 {
			return nil, errors.New("created event needs exactly one geometry")
		}
		return surface.Created{Points: r.Geometries[0]}, nil
	case "edited":
		return surface.Edited{Geometries: geometries(r.Geometries)}, nil
	case "deleted":
		return surface.Deleted{Geometries: geometries(r.Geometries)}, nil
	case "draw_start":
		return surface.DrawStarted{}, nil
	case "draw_stop":
		return surface.DrawStopped{}, nil
	default:
		return nil, errors.New("unknown event type " + r.Type)
	}
}

func geometries(in [][]dashboard.LatLng) []surface.Geometry {
	out := make([]surface.Geometry, len(in))
	for i, g := range in {
		out[i] = g
	}
	return out
}

type activeRegionRequest struct {
	ID *string `json:"id"`
}

type renameRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// rulesRequest carries a rule list. The store validates the rules once the
// region is known to exist.
type rulesRequest struct {
	Rules []dashboard.ColorRule `json:"rules"`
}

type drawingRequest struct {
	Drawing *bool `json:"drawing"`
}
