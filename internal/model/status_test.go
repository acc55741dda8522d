package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProposalStatus(t *testing.T) {
	tests := []struct {
		in   string
		want ProposalStatus
	}{
		{"Pending", StatusPending},
		{"pending", StatusPending},
		{"Under Review", StatusUnderReview},
		{"under_review", StatusUnderReview},
		{"UnderReview", StatusUnderReview},
		{"under-review", StatusUnderReview},
		{"hold", StatusUnderReview},
		{" Approved ", StatusApproved},
		{"approve", StatusApproved},
		{"REJECTED", StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProposalStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseProposalStatus("archived")
	assert.Error(t, err)
	_, err = ParseProposalStatus("")
	assert.Error(t, err)
}

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ProposalStatus("").Valid())
	assert.False(t, ProposalStatus("UnderReview").Valid())
}
