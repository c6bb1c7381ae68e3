package models

// FriendMatch is a single resolver result: a compatible trade partner together
// with how they were discovered. It is never persisted.
type FriendMatch struct {
	Profile *Profile `json:"profile"`
	// Through is nil for direct friends; otherwise it is the intermediate
	// friend via which this candidate was discovered.
	Through *Profile `json:"through,omitempty"`
	// IsRandom marks candidates found purely via the random opt-in pool.
	IsRandom bool `json:"isRandom"`
}

// IsDirect reports whether the matched profile is an immediate friend.
func (m FriendMatch) IsDirect() bool {
	return m.Through == nil && !m.IsRandom
}

// MatchResult is the outcome of a match resolution. NoMatchNecessary means the
// profile's current vote already produces the desired effect and no swap
// should be offered at all; it is semantically distinct from an empty Matches
// list, which means "eligible but nobody found".
type MatchResult struct {
	NoMatchNecessary bool          `json:"noMatchNecessary"`
	Matches          []FriendMatch `json:"matches"`
}

// NoMatchNecessaryResult returns the sentinel result value.
func NoMatchNecessaryResult() MatchResult {
	return MatchResult{NoMatchNecessary: true}
}
