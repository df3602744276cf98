package weather

import (
	"math"
	"time"
)

// AverageWindow reduces an hourly series to the mean of the samples that fall
// inside r.
//
// The series is assumed to be hourly and contiguous starting at midnight of
// r.Start's calendar day (in r.Start's location), which is how day-aligned
// providers return it. Hour offsets of r.Start and r.End are taken relative
// to that midnight, clamped to be non-negative and ordered, and the slice
// [start, end] is averaged inclusively. NaN and infinite samples are skipped.
// ok is false when no numeric sample remains.
func AverageWindow(samples Series, r TimeRange) (avg float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}

	dayStart := startOfDay(r.Start)
	startOffset := hoursBetween(dayStart, r.Start)
	endOffset := hoursBetween(dayStart, r.End)

	s := max(0, startOffset)
	e := max(s, endOffset)
	if s >= len(samples) {
		return 0, false
	}
	e = min(e, len(samples)-1)

	var (
		sum   float64
		count int
	)
	for _, v := range samples[s : e+1] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		count++
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// hoursBetween returns whole hours from a to b, truncated toward zero.
func hoursBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Hour)
}
