package session

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dsa-planner/internal/compliance"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/scorer"
)

// AreaScore is an area's current score with its tier and inputs.
type AreaScore struct {
	Area      model.MonitoredArea `json:"area"`
	Tier      scorer.Tier         `json:"tier"`
	Breakdown scorer.Breakdown    `json:"breakdown"`
}

// ProposalCheck pairs a proposal with its buffer check.
type ProposalCheck struct {
	Proposal   model.Proposal    `json:"proposal"`
	Compliance compliance.Result `json:"compliance"`
}

// Snapshot returns a deep copy of the dataset with the derived state that
// matches it.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Dataset: s.data.Clone(), Derived: s.derived}
}

// Derived returns the most recently computed derived state.
func (s *Session) Derived() Derived {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.derived
}

// AreaScore returns the current density score and tier for an area.
func (s *Session) AreaScore(id string) (AreaScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	area, err := s.data.Area(id)
	if err != nil {
		return AreaScore{}, err
	}
	b, err := scorer.Explain(area, s.data.Sensors, s.cfg.Scorer)
	if err != nil {
		return AreaScore{}, err
	}
	return AreaScore{
		Area:      area,
		Tier:      scorer.Classify(b.Score, scorer.Thresholds(s.cfg.Scorer)),
		Breakdown: b,
	}, nil
}

// ProposalCompliance checks the proposal's site against the current zones.
func (s *Session) ProposalCompliance(id string) (ProposalCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, err := s.data.ProposalIndex(id)
	if err != nil {
		return ProposalCheck{}, err
	}
	p := s.data.Proposals[i]
	return ProposalCheck{
		Proposal:   p.Clone(),
		Compliance: compliance.Check(p.Location, s.data.Zones, s.cfg.Compliance.BufferMeters),
	}, nil
}

// Hotspots returns the n highest-scoring areas.
func (s *Session) Hotspots(n int) []ranking.Hotspot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking.TopHotspots(s.derived.Ranked, n)
}

// CoverageGaps ranks the dataset's candidate sites by distance to the nearest
// area and returns the first n.
func (s *Session) CoverageGaps(n int) []ranking.Gap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking.FindCoverageGaps(s.data.Areas, s.data.GapCandidates, n)
}

// Recommendations ranks every proposal using the current pressure district.
func (s *Session) Recommendations() []ranking.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ranking.Recommend(s.data.Proposals, s.data.Zones, s.derived.PressureDistrict, s.derived.HasPressure, s.cfg)
}

// SetProposalStatus records a reviewer decision. Any status may move to any
// other; setting the current status again is still logged.
func (s *Session) SetProposalStatus(id string, status model.ProposalStatus) (ReviewEvent, error) {
	if !status.Valid() {
		return ReviewEvent{}, eris.Errorf("session: invalid proposal status %q", status)
	}

	var ev ReviewEvent
	err := s.mutate(false, func(ds *model.Dataset) error {
		i, err := ds.ProposalIndex(id)
		if err != nil {
			return err
		}
		ev = ReviewEvent{
			ID:         s.newID(),
			ProposalID: id,
			From:       ds.Proposals[i].Status,
			To:         status,
			At:         s.nowFunc(),
		}
		ds.Proposals[i].Status = status
		return nil
	}, func() {
		s.reviews = append(s.reviews, ev)
	})
	if err != nil {
		return ReviewEvent{}, err
	}
	return ev, nil
}

// ReviewLog returns every recorded status change, oldest first.
func (s *Session) ReviewLog() []ReviewEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reviews)
}
