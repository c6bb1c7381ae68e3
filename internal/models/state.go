package models

import "time"

// RankNone is the sentinel for "not ranked in this ordering".
const RankNone = -1

// State 是选情年鉴中一个州（或特区）的快照记录。
// 同一个州可以有多条不同 updated 日期的历史快照，最新的一条为当前快照。
type State struct {
	BaseModel
	Name    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_state_snapshot" json:"name"`
	Updated time.Time `gorm:"not null;uniqueIndex:idx_state_snapshot" json:"updated"`
	Abbv    string    `gorm:"type:varchar(8)" json:"abbv,omitempty"`
	// TippingPointRank orders swing states by closeness of the race;
	// RankNone for states that are not in play.
	TippingPointRank int `gorm:"not null;default:-1" json:"tippingPointRank"`
	// SafeFor is the candidate this state is safely won by, or none.
	SafeFor Candidate `gorm:"type:varchar(32);default:'none'" json:"safeFor"`
	// SafeRank orders safe states by how settled the outcome is;
	// RankNone if the state is not safe.
	SafeRank int       `gorm:"not null;default:-1" json:"safeRank"`
	Leans    Candidate `gorm:"type:varchar(32);default:'none'" json:"leans"`
	LeanRank int       `gorm:"not null;default:-1" json:"leanRank"`
}

// TableName 指定 State 模型的表名。
func (State) TableName() string {
	return "states"
}

// IsSwing reports whether the race in this state is unsettled.
func (s *State) IsSwing() bool {
	return s.TippingPointRank != RankNone
}

// IsSafe reports whether the outcome in this state is settled. SafeFor may
// still be none in the data ("safe but undecided"); callers that need a
// beneficiary must check SafeFor themselves.
func (s *State) IsSafe() bool {
	return s.SafeRank != RankNone
}

// StateRank is a (name, rank) entry of an ordered candidate-state pool.
type StateRank struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}
