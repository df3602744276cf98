package weather

import (
	"fmt"
	"time"
)

// Metric names the hourly variable requested from a provider.
type Metric string

const (
	MetricTemperature2m Metric = "temperature_2m"
)

// Location is a point on the map for which a series is fetched.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical key for the location, rounded to 4 decimal places
// so that nearly identical centroids share cache entries.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f_%.4f", l.Lat, l.Lon)
}

// TimeRange is an inclusive window of instants. Start equal to End is a
// single-hour window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether Start is not after End.
func (r TimeRange) Valid() bool {
	return !r.Start.After(r.End)
}

// Equal compares instants, ignoring monotonic clock readings and zone.
func (r TimeRange) Equal(o TimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

// In returns the range expressed in loc.
func (r TimeRange) In(loc *time.Location) TimeRange {
	return TimeRange{Start: r.Start.In(loc), End: r.End.In(loc)}
}

// DateBounds returns the date-only bounds of the range, formatted YYYY-MM-DD
// in the range's own location.
func (r TimeRange) DateBounds() (string, string) {
	return r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly)
}

// SeriesRequest identifies one hourly series fetch.
type SeriesRequest struct {
	Location Location
	Range    TimeRange
	Metric   Metric
}

// Key returns the cache key for the request: rounded coordinates plus the
// date-only bounds. Time of day never affects the key.
func (r SeriesRequest) Key() string {
	start, end := r.Range.DateBounds()
	return fmt.Sprintf("%s_%s_%s_%s", r.Location.Key(), start, end, r.Metric)
}

// Series is an hourly sample sequence starting at local midnight of the
// request's start day. Missing samples are NaN.
type Series []float64

