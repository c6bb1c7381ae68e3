package models

import "testing"

func TestStateClassification(t *testing.T) {
	tests := []struct {
		name  string
		state State
		swing bool
		safe  bool
	}{
		{
			name:  "contested swing state",
			state: State{Name: "Florida", TippingPointRank: 1, SafeRank: RankNone},
			swing: true,
			safe:  false,
		},
		{
			name:  "settled safe state",
			state: State{Name: "California", TippingPointRank: RankNone, SafeFor: CandidateClinton, SafeRank: 1},
			swing: false,
			safe:  true,
		},
		{
			name:  "unranked either way",
			state: State{Name: "Guam", TippingPointRank: RankNone, SafeRank: RankNone},
			swing: false,
			safe:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsSwing(); got != tt.swing {
				t.Errorf("IsSwing() = %v, want %v", got, tt.swing)
			}
			if got := tt.state.IsSafe(); got != tt.safe {
				t.Errorf("IsSafe() = %v, want %v", got, tt.safe)
			}
		})
	}
}

func TestProfileEligibility(t *testing.T) {
	partner := uint(4)
	tests := []struct {
		name     string
		profile  Profile
		eligible bool
	}{
		{"active and unpaired", Profile{Active: true}, true},
		{"inactive", Profile{Active: false}, false},
		{"paired", Profile{Active: true, PairedWithID: &partner}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Eligible(); got != tt.eligible {
				t.Errorf("Eligible() = %v, want %v", got, tt.eligible)
			}
		})
	}
}
