package dashboard

import "math"

// DefaultMatchTolerance is the largest L1 centroid distance, in degrees, at
// which an edited geometry is still considered the same region.
const DefaultMatchTolerance = 0.5

// Centroid returns the arithmetic mean of points. An empty slice yields the
// zero point.
func Centroid(points []LatLng) LatLng {
	if len(points) == 0 {
		return LatLng{}
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return LatLng{Lat: lat / n, Lng: lng / n}
}

// ManhattanDistance returns |Δlat| + |Δlng|.
func ManhattanDistance(a, b LatLng) float64 {
	return math.Abs(a.Lat-b.Lat) + math.Abs(a.Lng-b.Lng)
}

// Match is the result of matching a geometry to a region.
type Match struct {
	RegionID string
	Distance float64
}

// NearestRegion finds the region whose centroid is closest (L1) to c. The
// match is accepted only when the distance is strictly below tolerance.
// Regions are scanned in id order and only a strictly smaller distance
// replaces the current best, so exact ties resolve to the lowest id.
//
// This is identity by proximity: two regions with nearly coincident
// centroids cannot be told apart reliably.
func NearestRegion(s State, c LatLng, tolerance float64) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	for _, id := range s.RegionIDs() {
		d := ManhattanDistance(s.Regions[id].Centroid, c)
		if d < best.Distance {
			best = Match{RegionID: id, Distance: d}
		}
	}
	if best.RegionID == "" || best.Distance >= tolerance {
		return Match{}, false
	}
	return best, true
}
