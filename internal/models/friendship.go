package models

// Friendship represents an undirected friendship edge between two profiles.
// To avoid duplicates and simplify queries, ProfileID1 should always be less
// than ProfileID2; each edge is stored exactly once and queried both ways.
type Friendship struct {
	BaseModel
	ProfileID1 uint    `gorm:"not null;uniqueIndex:idx_friendship_profiles"`
	Profile1   Profile `gorm:"foreignKey:ProfileID1"`
	ProfileID2 uint    `gorm:"not null;uniqueIndex:idx_friendship_profiles"`
	Profile2   Profile `gorm:"foreignKey:ProfileID2"`
}

// EnsureCanonicalOrder sets ProfileID1 to the smaller ID and ProfileID2 to the
// larger ID. This should be called before creating a Friendship record.
func (f *Friendship) EnsureCanonicalOrder() {
	if f.ProfileID1 > f.ProfileID2 {
		f.ProfileID1, f.ProfileID2 = f.ProfileID2, f.ProfileID1
	}
}
