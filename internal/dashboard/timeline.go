package dashboard

import "time"

// Timeline is the span the time slider can select from.
type Timeline struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Step  string    `json:"step"`
}

// NewTimeline returns the window reaching days calendar days either side of
// midnight of now's day in loc. The slider moves in whole hours.
func NewTimeline(now time.Time, days int, loc *time.Location) Timeline {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Timeline{
		Start: midnight.AddDate(0, 0, -days),
		End:   midnight.AddDate(0, 0, days),
		Step:  time.Hour.String(),
	}
}

// Contains reports whether r lies inside the timeline.
func (t Timeline) Contains(r TimeRange) bool {
	return !r.Start.Before(t.Start) && !r.End.After(t.End)
}

// InitialState is the state used when no snapshot exists: no regions and a
// single-instant time range at the start of the timeline.
func InitialState(t Timeline) State {
	return State{
		TimeRange: TimeRange{Start: t.Start, End: t.Start},
		Regions:   make(map[string]Region),
	}
}
