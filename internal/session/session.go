// Package session owns the working planning dataset for one application
// session. Reads share a lock; every mutation runs under the write lock
// together with the recompute of derived scores, so a reader never sees a
// half-applied update.
package session

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dsa-planner/internal/compliance"
	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/scorer"
)

// Derived is the state computed from the dataset after every mutation.
// Values handed to callers and subscribers are shared and must not be
// modified.
type Derived struct {
	Tick       int64     `json:"tick"`
	ComputedAt time.Time `json:"computed_at"`

	// Areas holds every area's score in dataset order.
	Areas []ranking.Hotspot `json:"areas"`
	// Ranked holds the same scores sorted highest first.
	Ranked []ranking.Hotspot `json:"ranked"`
	// Compliance is keyed by proposal id.
	Compliance map[string]compliance.Result `json:"compliance"`

	PressureDistrict string `json:"pressure_district,omitempty"`
	HasPressure      bool   `json:"has_pressure"`
}

// Snapshot is a consistent copy of the dataset and its derived state.
type Snapshot struct {
	Dataset model.Dataset `json:"dataset"`
	Derived Derived       `json:"derived"`
}

// ReviewEvent records a reviewer status change.
type ReviewEvent struct {
	ID         string               `json:"id"`
	ProposalID string               `json:"proposal_id"`
	From       model.ProposalStatus `json:"from"`
	To         model.ProposalStatus `json:"to"`
	At         time.Time            `json:"at"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.nowFunc = now }
}

// WithIDFunc overrides review event id generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// Session is the single owner of mutable planning state.
type Session struct {
	cfg      config.PlannerConfig
	pristine model.Dataset

	mu      sync.RWMutex
	data    model.Dataset
	derived Derived
	reviews []ReviewEvent

	subMu   sync.Mutex
	subs    map[int]func(Derived)
	nextSub int

	nowFunc func() time.Time
	newID   func() string
}

// New validates the fixture, deep-copies it into working state and computes
// the initial derived state. The fixture is never modified and is kept for
// Reset.
func New(fixture model.Dataset, cfg config.PlannerConfig, opts ...Option) (*Session, error) {
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, err
	}
	if err := fixture.Validate(); err != nil {
		return nil, err
	}
	if len(fixture.Areas) > 0 && len(fixture.Sensors) == 0 {
		return nil, eris.Wrap(geo.ErrEmptyInput, "session: areas require at least one air quality sensor")
	}

	s := &Session{
		cfg:      cfg,
		pristine: fixture.Clone(),
		data:     fixture.Clone(),
		subs:     map[int]func(Derived){},
		nowFunc:  time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	d, err := s.compute(0)
	if err != nil {
		return nil, err
	}
	s.derived = d
	return s, nil
}

// Config returns the planner configuration.
func (s *Session) Config() config.PlannerConfig { return s.cfg }

// compute builds derived state from s.data. Callers hold the write lock or are
// constructing the session.
func (s *Session) compute(tick int64) (Derived, error) {
	areas, err := ranking.ScoreAreas(s.data.Areas, s.data.Sensors, s.cfg.Scorer)
	if err != nil {
		return Derived{}, eris.Wrap(err, "session: score areas")
	}

	checks := make(map[string]compliance.Result, len(s.data.Proposals))
	for _, p := range s.data.Proposals {
		checks[p.ID] = compliance.Check(p.Location, s.data.Zones, s.cfg.Compliance.BufferMeters)
	}

	d := Derived{
		Tick:       tick,
		ComputedAt: s.nowFunc(),
		Areas:      areas,
		Ranked:     ranking.TopHotspots(areas, len(areas)),
		Compliance: checks,
	}
	d.PressureDistrict, d.HasPressure = ranking.PressureDistrict(areas)
	return d, nil
}

// Update applies fn to the working dataset and recomputes derived state as one
// atomic step. If the recompute fails the dataset is rolled back.
func (s *Session) Update(fn func(ds *model.Dataset)) error {
	return s.mutate(false, changeAll(fn), nil)
}

// Advance is Update for a simulation tick; it also increments the tick counter.
func (s *Session) Advance(fn func(ds *model.Dataset)) error {
	return s.mutate(true, changeAll(fn), nil)
}

// Recompute rebuilds derived state from unchanged data and notifies
// subscribers. The tick counter is kept.
func (s *Session) Recompute() error {
	return s.mutate(false, nil, nil)
}

func changeAll(fn func(ds *model.Dataset)) func(ds *model.Dataset) error {
	return func(ds *model.Dataset) error {
		fn(ds)
		return nil
	}
}

// mutate runs fn and recomputes under the write lock. An error from fn or
// from the recompute restores the dataset; an error from fn also skips the
// recompute and leaves subscribers unnotified. commit runs under the lock
// only once the new state is in place.
func (s *Session) mutate(tick bool, fn func(ds *model.Dataset) error, commit func()) error {
	s.mu.Lock()
	prev := s.data.Clone()
	if fn != nil {
		if err := fn(&s.data); err != nil {
			s.data = prev
			s.mu.Unlock()
			return err
		}
	}
	next := s.derived.Tick
	if tick {
		next++
	}
	d, err := s.compute(next)
	if err != nil {
		s.data = prev
		s.mu.Unlock()
		return err
	}
	s.derived = d
	if commit != nil {
		commit()
	}
	s.mu.Unlock()

	zap.L().Debug("session: recomputed",
		zap.Int64("tick", d.Tick),
		zap.String("pressure_district", d.PressureDistrict),
	)
	s.notify(d)
	return nil
}

// Reset restores the working dataset to the fixture the session was created
// with. The review log is kept.
func (s *Session) Reset() error {
	return s.Update(func(ds *model.Dataset) {
		*ds = s.pristine.Clone()
	})
}

// Subscribe registers fn to receive derived state after every recompute. fn
// runs on the mutating goroutine, outside the session lock. The returned func
// removes the subscription.
func (s *Session) Subscribe(fn func(Derived)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify(d Derived) {
	s.subMu.Lock()
	fns := make([]func(Derived), 0, len(s.subs))
	// Deliver in subscription order.
	for _, id := range slices.Sorted(maps.Keys(s.subs)) {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(d)
	}
}
