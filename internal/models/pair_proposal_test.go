package models

import (
	"testing"
	"time"
)

func TestPairProposalStatus(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		proposal PairProposal
		status   ProposalStatus
		pending  bool
	}{
		{"fresh", PairProposal{DateProposed: now}, ProposalStatusPending, true},
		{"confirmed", PairProposal{DateProposed: now, DateConfirmed: &now}, ProposalStatusConfirmed, false},
		{"rejected", PairProposal{DateProposed: now, DateRejected: &now}, ProposalStatusRejected, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.proposal.Status(); got != tt.status {
				t.Errorf("Status() = %s, want %s", got, tt.status)
			}
			if got := tt.proposal.Pending(); got != tt.pending {
				t.Errorf("Pending() = %v, want %v", got, tt.pending)
			}
		})
	}
}

func TestPairProposalCounterparty(t *testing.T) {
	proposal := PairProposal{FromProfileID: 3, ToProfileID: 7}

	if !proposal.Touches(3) || !proposal.Touches(7) {
		t.Error("proposal should touch both parties")
	}
	if proposal.Touches(5) {
		t.Error("proposal should not touch an unrelated profile")
	}
	if got := proposal.CounterpartyID(3); got != 7 {
		t.Errorf("CounterpartyID(3) = %d, want 7", got)
	}
	if got := proposal.CounterpartyID(7); got != 3 {
		t.Errorf("CounterpartyID(7) = %d, want 3", got)
	}
}

func TestFriendshipCanonicalOrder(t *testing.T) {
	friendship := Friendship{ProfileID1: 9, ProfileID2: 2}
	friendship.EnsureCanonicalOrder()
	if friendship.ProfileID1 != 2 || friendship.ProfileID2 != 9 {
		t.Errorf("got (%d, %d), want (2, 9)", friendship.ProfileID1, friendship.ProfileID2)
	}

	// Already canonical stays put.
	friendship.EnsureCanonicalOrder()
	if friendship.ProfileID1 != 2 || friendship.ProfileID2 != 9 {
		t.Errorf("second call changed order to (%d, %d)", friendship.ProfileID1, friendship.ProfileID2)
	}
}
