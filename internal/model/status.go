package model

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// ProposalStatus is the reviewer-controlled state of a proposal. Any status
// may move to any other.
type ProposalStatus string

const (
	StatusPending     ProposalStatus = "Pending"
	StatusUnderReview ProposalStatus = "Under Review"
	StatusApproved    ProposalStatus = "Approved"
	StatusRejected    ProposalStatus = "Rejected"
)

// AllStatuses lists the statuses in workflow order.
func AllStatuses() []ProposalStatus {
	return []ProposalStatus{StatusPending, StatusUnderReview, StatusApproved, StatusRejected}
}

// Valid reports whether s is one of the known statuses.
func (s ProposalStatus) Valid() bool {
	return slices.Contains(AllStatuses(), s)
}

// ParseProposalStatus accepts the display form ("Under Review") as well as
// snake, kebab and compact spellings, case-insensitively.
func ParseProposalStatus(raw string) (ProposalStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "pending":
		return StatusPending, nil
	case "underreview", "hold", "onhold":
		return StatusUnderReview, nil
	case "approved", "approve":
		return StatusApproved, nil
	case "rejected", "reject":
		return StatusRejected, nil
	}
	return "", eris.Errorf("model: unknown proposal status %q", raw)
}

// UnmarshalText parses s leniently so fixtures and API payloads may use any
// accepted spelling.
func (s *ProposalStatus) UnmarshalText(b []byte) error {
	v, err := ParseProposalStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
