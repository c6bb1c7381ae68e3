package models

import "time"

// ProposalStatus 定义换票提议的状态
type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusConfirmed ProposalStatus = "confirmed"
	ProposalStatusRejected  ProposalStatus = "rejected"
)

// PairProposal 代表一次定向的换票提议记录。
// 状态不单独存列，而是由 confirmed/rejected 时间戳推导，两者至多一个非空。
type PairProposal struct {
	BaseModel
	FromProfileID uint       `gorm:"not null;index:idx_pair_proposal_profiles"`
	ToProfileID   uint       `gorm:"not null;index:idx_pair_proposal_profiles"`
	DateProposed  time.Time  `gorm:"not null"`
	DateConfirmed *time.Time `json:"dateConfirmed,omitempty"`
	DateRejected  *time.Time `json:"dateRejected,omitempty"`
	// ReasonRejected is free text, present only once rejected.
	ReasonRejected string `gorm:"type:text" json:"reasonRejected,omitempty"`
}

// TableName 指定 PairProposal 模型的表名。
func (PairProposal) TableName() string {
	return "pair_proposals"
}

// Status derives the lifecycle state from the terminal timestamps.
func (p *PairProposal) Status() ProposalStatus {
	switch {
	case p.DateConfirmed != nil:
		return ProposalStatusConfirmed
	case p.DateRejected != nil:
		return ProposalStatusRejected
	default:
		return ProposalStatusPending
	}
}

// Pending reports whether neither terminal transition has happened yet.
func (p *PairProposal) Pending() bool {
	return p.DateConfirmed == nil && p.DateRejected == nil
}

// Touches reports whether the given profile is on either side of the proposal.
func (p *PairProposal) Touches(profileID uint) bool {
	return p.FromProfileID == profileID || p.ToProfileID == profileID
}

// CounterpartyID returns the other side of the proposal relative to profileID.
func (p *PairProposal) CounterpartyID(profileID uint) uint {
	if p.FromProfileID == profileID {
		return p.ToProfileID
	}
	return p.FromProfileID
}

// PairProposalWithProfiles is a DTO that includes proposal details along with
// basic information about both parties. Useful for API listings.
type PairProposalWithProfiles struct {
	PairProposal
	From *ProfileBasicInfo `json:"from"`
	To   *ProfileBasicInfo `json:"to"`
}
