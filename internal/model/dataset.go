package model

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// Dataset is the full set of planning records a session works on.
type Dataset struct {
	Areas         []MonitoredArea    `json:"areas" yaml:"areas"`
	Zones         []ProtectedZone    `json:"zones" yaml:"zones"`
	Sensors       []AirQualitySensor `json:"sensors" yaml:"sensors"`
	Proposals     []Proposal         `json:"proposals" yaml:"proposals"`
	GapCandidates []CandidateSite    `json:"gap_candidates" yaml:"gap_candidates"`
}

// Validate checks every record and rejects duplicate ids within a record kind.
// All problems are reported together.
func (d Dataset) Validate() error {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	seen := map[string]bool{}
	dup := func(kind, id string) {
		key := kind + "/" + id
		if seen[key] {
			errs = append(errs, "duplicate "+kind+" id "+id)
		}
		seen[key] = true
	}

	for _, a := range d.Areas {
		add(a.Validate())
		dup("area", a.ID)
	}
	for _, z := range d.Zones {
		add(z.Validate())
		dup("zone", z.ID)
	}
	for _, s := range d.Sensors {
		add(s.Validate())
		dup("sensor", s.ID)
	}
	for _, p := range d.Proposals {
		add(p.Validate())
		dup("proposal", p.ID)
	}
	for _, c := range d.GapCandidates {
		if !c.Location.Valid() {
			errs = append(errs, "gap candidate "+c.Name+" has invalid coordinate")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("model: dataset validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Clone returns a deep copy of d.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Areas:         slices.Clone(d.Areas),
		Zones:         slices.Clone(d.Zones),
		Sensors:       slices.Clone(d.Sensors),
		GapCandidates: slices.Clone(d.GapCandidates),
	}
	if d.Proposals != nil {
		out.Proposals = make([]Proposal, len(d.Proposals))
		for i, p := range d.Proposals {
			out.Proposals[i] = p.Clone()
		}
	}
	return out
}

// Area returns the area with the given id.
func (d Dataset) Area(id string) (MonitoredArea, error) {
	for _, a := range d.Areas {
		if a.ID == id {
			return a, nil
		}
	}
	return MonitoredArea{}, NewNotFoundError("area", id)
}

// ProposalIndex returns the slice index of the proposal with the given id.
func (d Dataset) ProposalIndex(id string) (int, error) {
	for i, p := range d.Proposals {
		if p.ID == id {
			return i, nil
		}
	}
	return -1, NewNotFoundError("proposal", id)
}
