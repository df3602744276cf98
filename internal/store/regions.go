package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/i474232898/weather-region-dashboard/internal/dashboard"
)

var (
	// ErrInvalidGeometry is returned when a boundary has too few or too many
	// points, or a point outside WGS84 bounds.
	ErrInvalidGeometry = errors.New("region boundary must have between 3 and 12 valid points")

	// ErrInvalidTimeRange is returned when a time range starts after it ends.
	ErrInvalidTimeRange = errors.New("time range start is after end")

	// ErrInvalidRules is returned when a rule has an unknown operator or no color.
	ErrInvalidRules = errors.New("invalid color rules")
)

// Change describes one committed state transition. Both states are read-only
// views; listeners must not modify them.
type Change struct {
	Prev dashboard.State
	Next dashboard.State
}

// Listener is notified after each committed transition, in commit order.
// Listeners run synchronously on the mutating goroutine and must not call
// mutating store operations themselves.
type Listener func(Change)

type boundaryInput struct {
	Points []dashboard.LatLng `validate:"min=3,max=12,dive"`
}

type rulesInput struct {
	Rules []dashboard.ColorRule `validate:"dive"`
}

// RegionStore is the single source of truth for dashboard state. Every
// mutation replaces the state atomically and then notifies subscribers; no
// partially applied state is ever observable.
type RegionStore struct {
	mu sync.RWMutex

	state dashboard.State

	// notifyMu serializes deliveries so listeners see transitions in commit order.
	notifyMu     sync.Mutex
	listeners    map[int]Listener
	nextListener int

	newID    func() string
	validate *validator.Validate
	log      *slog.Logger
}

// Option configures a RegionStore.
type Option func(*RegionStore)

// WithIDGenerator overrides region id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *RegionStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RegionStore) {
		if l != nil {
			s.log = l
		}
	}
}

// NewRegionStore creates a store seeded with initial.
func NewRegionStore(initial dashboard.State, opts ...Option) *RegionStore {
	s := &RegionStore{
		state:     initial.Clone(),
		listeners: make(map[int]Listener),
		newID:     uuid.NewString,
		validate:  validator.New(),
		log:       slog.Default(),
	}
	if s.state.Regions == nil {
		s.state.Regions = make(map[string]dashboard.Region)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *RegionStore) Snapshot() dashboard.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Region returns a copy of one region.
func (s *RegionStore) Region(id string) (dashboard.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.Regions[id]
	if !ok {
		return dashboard.Region{}, false
	}
	return r.Clone(), true
}

// Subscribe registers l and returns a function that removes it.
func (s *RegionStore) Subscribe(l Listener) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// SetTimeRange replaces the active time window.
func (s *RegionStore) SetTimeRange(r dashboard.TimeRange) error {
	if !r.Valid() {
		return fmt.Errorf("%w: %s > %s", ErrInvalidTimeRange, r.Start, r.End)
	}
	s.commit(func(next *dashboard.State) bool {
		next.TimeRange = r
		return true
	})
	return nil
}

// AddRegion validates boundary and inserts a new region with a fresh id, a
// default name, the default rules and no data. The new region becomes active
// and drawing mode is cleared. The centroid is always the mean of boundary.
func (s *RegionStore) AddRegion(boundary []dashboard.LatLng, source dashboard.DataSource) (dashboard.Region, error) {
	if err := s.validateBoundary(boundary); err != nil {
		return dashboard.Region{}, err
	}
	if source == "" {
		source = dashboard.DataSourceTemperature2m
	}

	var created dashboard.Region
	s.commit(func(next *dashboard.State) bool {
		id := s.newID()
		for _, exists := next.Regions[id]; exists; _, exists = next.Regions[id] {
			id = s.newID()
		}
		created = dashboard.Region{
			ID:           id,
			Name:         fmt.Sprintf("Region %d", len(next.Regions)+1),
			Boundary:     append([]dashboard.LatLng(nil), boundary...),
			Centroid:     dashboard.Centroid(boundary),
			DataSource:   source,
			Rules:        dashboard.DefaultRules(),
			DisplayColor: dashboard.NeutralColor,
		}
		next.Regions[id] = created
		next.ActiveRegionID = id
		next.IsDrawing = false
		return true
	})

	s.log.Info("region added", "region_id", created.ID, "name", created.Name, "points", len(boundary))
	return created.Clone(), nil
}

// DeleteRegion removes a region. Deleting the active region clears the
// active id. Unknown ids are ignored.
func (s *RegionStore) DeleteRegion(id string) {
	s.commit(func(next *dashboard.State) bool {
		if _, ok := next.Regions[id]; !ok {
			return false
		}
		delete(next.Regions, id)
		if next.ActiveRegionID == id {
			next.ActiveRegionID = ""
		}
		return true
	})
}

// SetActiveRegion selects a region; an empty id clears the selection.
func (s *RegionStore) SetActiveRegion(id string) {
	s.commit(func(next *dashboard.State) bool {
		next.ActiveRegionID = id
		return true
	})
}

// UpdateRegionName renames a region. Unknown ids are ignored.
func (s *RegionStore) UpdateRegionName(id, name string) {
	s.updateRegion(id, func(r *dashboard.Region) bool {
		r.Name = name
		return true
	})
}

// UpdateRegionRules replaces a region's rule list. Rules without an id are
// assigned one. Unknown region ids are ignored before any validation.
func (s *RegionStore) UpdateRegionRules(id string, rules []dashboard.ColorRule) error {
	if !s.hasRegion(id) {
		return nil
	}
	if err := s.validate.Struct(rulesInput{Rules: rules}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	owned := make([]dashboard.ColorRule, len(rules))
	copy(owned, rules)
	for i := range owned {
		if owned[i].ID == "" {
			owned[i].ID = uuid.NewString()
		}
	}

	s.updateRegion(id, func(r *dashboard.Region) bool {
		r.Rules = owned
		return true
	})
	return nil
}

// UpdateRegionBoundary replaces a region's boundary and recomputes its
// centroid. The current value and color are left for the sync engine to
// refresh. Unknown ids are ignored before any validation.
func (s *RegionStore) UpdateRegionBoundary(id string, boundary []dashboard.LatLng) error {
	if !s.hasRegion(id) {
		return nil
	}
	if err := s.validateBoundary(boundary); err != nil {
		return err
	}
	points := append([]dashboard.LatLng(nil), boundary...)
	s.updateRegion(id, func(r *dashboard.Region) bool {
		r.Boundary = points
		r.Centroid = dashboard.Centroid(points)
		return true
	})
	return nil
}

// UpdateRegionData records a derived value and color. It is a no-op, with no
// notification, when both equal the region's current data; the sync engine
// relies on this to avoid retriggering itself. It reports whether the state
// changed.
func (s *RegionStore) UpdateRegionData(id string, value *float64, color string) bool {
	var v *float64
	if value != nil {
		c := *value
		v = &c
	}
	return s.updateRegion(id, func(r *dashboard.Region) bool {
		if dashboard.SameValue(r.CurrentValue, v) && r.DisplayColor == color {
			return false
		}
		r.CurrentValue = v
		r.DisplayColor = color
		return true
	})
}

// ToggleDrawing sets drawing mode to *force, or flips it when force is nil.
func (s *RegionStore) ToggleDrawing(force *bool) {
	s.commit(func(next *dashboard.State) bool {
		if force != nil {
			next.IsDrawing = *force
		} else {
			next.IsDrawing = !next.IsDrawing
		}
		return true
	})
}

func (s *RegionStore) hasRegion(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.Regions[id]
	return ok
}

func (s *RegionStore) validateBoundary(boundary []dashboard.LatLng) error {
	if err := s.validate.Struct(boundaryInput{Points: boundary}); err != nil {
		return fmt.Errorf("%w: got %d points: %v", ErrInvalidGeometry, len(boundary), err)
	}
	return nil
}

// updateRegion applies fn to a copy of region id and commits it if fn
// reports a change.
func (s *RegionStore) updateRegion(id string, fn func(r *dashboard.Region) bool) bool {
	return s.commit(func(next *dashboard.State) bool {
		r, ok := next.Regions[id]
		if !ok {
			return false
		}
		if !fn(&r) {
			return false
		}
		next.Regions[id] = r
		return true
	})
}

// commit builds the next state copy-on-write, swaps it in and notifies
// listeners. fn returning false discards the copy without notification.
func (s *RegionStore) commit(fn func(next *dashboard.State) bool) bool {
	s.mu.Lock()

	prev := s.state
	next := prev
	next.Regions = make(map[string]dashboard.Region, len(prev.Regions))
	for id, r := range prev.Regions {
		next.Regions[id] = r
	}

	if !fn(&next) {
		s.mu.Unlock()
		return false
	}
	s.state = next

	// Take the delivery lock before releasing the state lock so deliveries
	// cannot overtake each other.
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	change := Change{Prev: prev, Next: next}
	for _, l := range s.listeners {
		l(change)
	}
	return true
}
