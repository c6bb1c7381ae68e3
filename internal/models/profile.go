package models

// Profile 代表一个参与换票匹配的选民档案。
// 好友关系与配对关系由独立的表维护，这里只保存单侧的 paired_with 指针。
type Profile struct {
	BaseModel
	Name               string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	State              string    `gorm:"type:varchar(255);index" json:"state"`
	PreferredCandidate Candidate `gorm:"type:varchar(32);default:'none'" json:"preferredCandidate"`
	// Reason is the user's own words on why they want to swap.
	Reason string `gorm:"type:text" json:"reason,omitempty"`
	// Active profiles participate in matching; inactive ones are still
	// traversed as friend-graph links but never returned as candidates.
	Active bool `gorm:"not null;default:false" json:"active"`
	// AllowRandom opts the profile into being matched with strangers.
	AllowRandom bool `gorm:"not null;default:false" json:"allowRandom"`
	// PairedWithID points at the committed swap partner, if any. The relation
	// is symmetric and mutually exclusive; both rows are updated together.
	PairedWithID *uint `gorm:"index" json:"pairedWithId,omitempty"`
}

// TableName 指定 Profile 模型的表名。
func (Profile) TableName() string {
	return "profiles"
}

// Unpaired reports whether the profile currently has no swap partner.
func (p *Profile) Unpaired() bool {
	return p.PairedWithID == nil
}

// Eligible reports whether the profile may appear as a match candidate at all.
// Pool membership and candidate compatibility are checked by the caller.
func (p *Profile) Eligible() bool {
	return p.Active && p.Unpaired()
}

// ProfileBasicInfo holds the minimal public fields of a profile, used when a
// profile is referenced from another record (e.g. a proposal counterparty).
type ProfileBasicInfo struct {
	ID                 uint      `json:"id"`
	Name               string    `json:"name,omitempty"`
	State              string    `json:"state"`
	PreferredCandidate Candidate `json:"preferredCandidate"`
}

// BasicInfo returns the reduced public view of the profile.
func (p *Profile) BasicInfo() *ProfileBasicInfo {
	return &ProfileBasicInfo{
		ID:                 p.ID,
		Name:               p.Name,
		State:              p.State,
		PreferredCandidate: p.PreferredCandidate,
	}
}
