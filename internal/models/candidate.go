package models

// Candidate 定义候选人的闭合集合
type Candidate string

const (
	CandidateClinton Candidate = "clinton"
	CandidateTrump   Candidate = "trump"
	CandidateJohnson Candidate = "johnson"
	CandidateStein   Candidate = "stein"
	CandidateNone    Candidate = "none"
)

// Party names, kept for almanac display and data loading.
const (
	PartyDemocratic  = "democratic"
	PartyGreen       = "green"
	PartyLibertarian = "libertarian"
	PartyRepublican  = "republican"
)

// CandidateToParty maps each real candidate to their party.
var CandidateToParty = map[Candidate]string{
	CandidateClinton: PartyDemocratic,
	CandidateTrump:   PartyRepublican,
	CandidateJohnson: PartyLibertarian,
	CandidateStein:   PartyGreen,
}

// CompatibleMajors maps a third-party candidate to the major-party candidates
// their voters accept as the banked half of a swap. The table is fixed; it is
// not derived at runtime.
var CompatibleMajors = map[Candidate][]Candidate{
	CandidateJohnson: {CandidateClinton, CandidateTrump},
	CandidateStein:   {CandidateClinton},
}

// CompatibleThirdParties is the exact inverse of CompatibleMajors, used when a
// major-party voter in a safe state searches for swing-state third-party
// voters. Keeping it the inverse makes match reciprocity hold by construction.
var CompatibleThirdParties = map[Candidate][]Candidate{
	CandidateClinton: {CandidateJohnson, CandidateStein},
	CandidateTrump:   {CandidateJohnson},
}

// IsMajor reports whether the candidate belongs to a major party.
func (c Candidate) IsMajor() bool {
	return c == CandidateClinton || c == CandidateTrump
}

// IsThirdParty reports whether the candidate belongs to a third party.
func (c Candidate) IsThirdParty() bool {
	return c == CandidateJohnson || c == CandidateStein
}

// Valid reports whether the value is part of the closed candidate set.
func (c Candidate) Valid() bool {
	switch c {
	case CandidateClinton, CandidateTrump, CandidateJohnson, CandidateStein, CandidateNone:
		return true
	}
	return false
}
