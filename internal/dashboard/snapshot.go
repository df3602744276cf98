package dashboard

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotVersion is written into every encoded snapshot.
const SnapshotVersion = 1

// snapshotDoc is the persisted layout of a State. Instants are written as
// RFC 3339 strings with nanoseconds and parsed back explicitly on decode.
type snapshotDoc struct {
	Version        int               `json:"version"`
	TimeRange      timeRangeDoc      `json:"timeRange"`
	Regions        map[string]Region `json:"polygons"`
	ActiveRegionID *string           `json:"activePolygonId"`
	IsDrawing      bool              `json:"isDrawing"`
}

type timeRangeDoc struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EncodeSnapshot serializes s into its persisted JSON form.
func EncodeSnapshot(s State) ([]byte, error) {
	doc := snapshotDoc{
		Version: SnapshotVersion,
		TimeRange: timeRangeDoc{
			Start: s.TimeRange.Start.Format(time.RFC3339Nano),
			End:   s.TimeRange.End.Format(time.RFC3339Nano),
		},
		Regions:   s.Regions,
		IsDrawing: s.IsDrawing,
	}
	if doc.Regions == nil {
		doc.Regions = map[string]Region{}
	}
	if s.ActiveRegionID != "" {
		id := s.ActiveRegionID
		doc.ActiveRegionID = &id
	}
	return json.Marshal(doc)
}

// DecodeSnapshot parses a persisted snapshot back into a State, turning the
// time range strings back into instants. A range that starts after it ends
// is an error. Regions are normalized the way the store would have built
// them: the map key is the id, the centroid is recomputed from the boundary,
// and regions whose boundary is outside the allowed point count are dropped.
// An active id that names no region is cleared.
func DecodeSnapshot(data []byte) (State, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > SnapshotVersion {
		return State{}, fmt.Errorf("decode snapshot: unsupported version %d", doc.Version)
	}

	start, err := parseInstant(doc.TimeRange.Start)
	if err != nil {
		return State{}, fmt.Errorf("decode snapshot: timeRange.start: %w", err)
	}
	end, err := parseInstant(doc.TimeRange.End)
	if err != nil {
		return State{}, fmt.Errorf("decode snapshot: timeRange.end: %w", err)
	}
	r := TimeRange{Start: start, End: end}
	if !r.Valid() {
		return State{}, fmt.Errorf("decode snapshot: timeRange start %s is after end %s", doc.TimeRange.Start, doc.TimeRange.End)
	}

	s := State{
		TimeRange: r,
		Regions:   make(map[string]Region, len(doc.Regions)),
		IsDrawing: doc.IsDrawing,
	}
	for id, region := range doc.Regions {
		if n := len(region.Boundary); n < MinBoundaryPoints || n > MaxBoundaryPoints {
			continue
		}
		region.ID = id
		region.Centroid = Centroid(region.Boundary)
		s.Regions[id] = region
	}
	if doc.ActiveRegionID != nil {
		if _, ok := s.Regions[*doc.ActiveRegionID]; ok {
			s.ActiveRegionID = *doc.ActiveRegionID
		}
	}
	return s, nil
}

// parseInstant accepts RFC 3339 with or without fractional seconds.
func parseInstant(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("missing instant")
	}
	return time.Parse(time.RFC3339Nano, v)
}
