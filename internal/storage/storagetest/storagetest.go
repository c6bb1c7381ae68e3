// Package storagetest provides in-memory repository implementations for
// service-level tests. They mirror the SQL repositories' observable behavior,
// including the transactional confirm/reject transitions, without a database.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

// ProfileRepository is an in-memory storage.ProfileRepository.
type ProfileRepository struct {
	mu       sync.Mutex
	nextID   uint
	profiles map[uint]*models.Profile
}

// NewProfileRepository creates an empty in-memory ProfileRepository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{nextID: 1, profiles: make(map[uint]*models.Profile)}
}

// Seed inserts a profile directly, assigning an ID if it has none, and
// returns it for convenience.
func (r *ProfileRepository) Seed(profile models.Profile) *models.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile.ID == 0 {
		profile.ID = r.nextID
	}
	if profile.ID >= r.nextID {
		r.nextID = profile.ID + 1
	}
	stored := profile
	r.profiles[stored.ID] = &stored
	return &stored
}

func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if profile.ID == 0 {
		profile.ID = r.nextID
	}
	if profile.ID >= r.nextID {
		r.nextID = profile.ID + 1
	}
	stored := *profile
	r.profiles[stored.ID] = &stored
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *profile
	return &copied, nil
}

func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var profiles []models.Profile
	for _, id := range ids {
		if profile, ok := r.profiles[id]; ok {
			profiles = append(profiles, *profile)
		}
	}
	return profiles, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profile.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *profile
	r.profiles[stored.ID] = &stored
	return nil
}

func (r *ProfileRepository) FindEligibleByIDs(ctx context.Context, ids []uint, states []string, candidates []models.Candidate) ([]models.Profile, error) {
	if len(ids) == 0 || len(states) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var profiles []models.Profile
	for _, id := range ids {
		profile, ok := r.profiles[id]
		if !ok || !profile.Eligible() {
			continue
		}
		if !containsString(states, profile.State) || !containsCandidate(candidates, profile.PreferredCandidate) {
			continue
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}

func (r *ProfileRepository) FindEligibleRandom(ctx context.Context, states []string, candidates []models.Candidate, excludeIDs []uint) ([]models.Profile, error) {
	if len(states) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var profiles []models.Profile
	for _, profile := range r.profiles {
		if excluded[profile.ID] || !profile.AllowRandom || !profile.Eligible() {
			continue
		}
		if !containsString(states, profile.State) || !containsCandidate(candidates, profile.PreferredCandidate) {
			continue
		}
		profiles = append(profiles, *profile)
	}
	// Map iteration order is random; return rows in primary-key order like
	// the SQL repository does.
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (r *ProfileRepository) GetDB() *gorm.DB {
	return nil
}

// FriendshipRepository is an in-memory storage.FriendshipRepository.
type FriendshipRepository struct {
	mu     sync.Mutex
	nextID uint
	edges  []models.Friendship
}

// NewFriendshipRepository creates an empty in-memory FriendshipRepository.
func NewFriendshipRepository() *FriendshipRepository {
	return &FriendshipRepository{nextID: 1}
}

// Befriend links the two profiles directly.
func (r *FriendshipRepository) Befriend(profileID1, profileID2 uint) {
	friendship := models.Friendship{ProfileID1: profileID1, ProfileID2: profileID2}
	friendship.EnsureCanonicalOrder()
	_ = r.Create(context.Background(), &friendship)
}

func (r *FriendshipRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if friendship.ID == 0 {
		friendship.ID = r.nextID
		r.nextID++
	}
	r.edges = append(r.edges, *friendship)
	return nil
}

func (r *FriendshipRepository) AreProfilesFriends(ctx context.Context, profileID1, profileID2 uint) (bool, error) {
	p1, p2 := profileID1, profileID2
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, edge := range r.edges {
		if edge.ProfileID1 == p1 && edge.ProfileID2 == p2 {
			return true, nil
		}
	}
	return false, nil
}

func (r *FriendshipRepository) GetFriendIDs(ctx context.Context, profileID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for _, edge := range r.edges {
		switch profileID {
		case edge.ProfileID1:
			ids = append(ids, edge.ProfileID2)
		case edge.ProfileID2:
			ids = append(ids, edge.ProfileID1)
		}
	}
	return ids, nil
}

// StateRepository is an in-memory storage.StateRepository.
type StateRepository struct {
	mu     sync.Mutex
	nextID uint
	states []models.State
}

// NewStateRepository creates an empty in-memory StateRepository.
func NewStateRepository() *StateRepository {
	return &StateRepository{nextID: 1}
}

// Seed inserts a state snapshot directly.
func (r *StateRepository) Seed(state models.State) {
	_ = r.Create(context.Background(), &state)
}

func (r *StateRepository) Create(ctx context.Context, state *models.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.ID == 0 {
		state.ID = r.nextID
	}
	if state.ID >= r.nextID {
		r.nextID = state.ID + 1
	}
	r.states = append(r.states, *state)
	return nil
}

func (r *StateRepository) GetCurrent(ctx context.Context, name string) (*models.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *models.State
	for i := range r.states {
		state := &r.states[i]
		if state.Name != name {
			continue
		}
		if current == nil || state.Updated.After(current.Updated) ||
			(state.Updated.Equal(current.Updated) && state.ID > current.ID) {
			current = state
		}
	}
	if current == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *current
	return &copied, nil
}

func (r *StateRepository) SafeStatePool(ctx context.Context) ([]models.StateRank, error) {
	return r.pool(func(s *models.State) (int, bool) {
		return s.SafeRank, s.SafeRank != models.RankNone
	})
}

func (r *StateRepository) SwingStatePool(ctx context.Context) ([]models.StateRank, error) {
	return r.pool(func(s *models.State) (int, bool) {
		return s.TippingPointRank, s.TippingPointRank != models.RankNone && s.SafeFor == models.CandidateNone
	})
}

func (r *StateRepository) pool(classify func(*models.State) (int, bool)) ([]models.StateRank, error) {
	r.mu.Lock()
	names := make(map[string]bool)
	for _, state := range r.states {
		names[state.Name] = true
	}
	r.mu.Unlock()

	var pool []models.StateRank
	for name := range names {
		current, err := r.GetCurrent(context.Background(), name)
		if err != nil {
			return nil, err
		}
		if rank, ok := classify(current); ok {
			pool = append(pool, models.StateRank{Name: current.Name, Rank: rank})
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Rank != pool[j].Rank {
			return pool[i].Rank < pool[j].Rank
		}
		return pool[i].Name < pool[j].Name
	})
	return pool, nil
}

// ProposalRepository is an in-memory storage.ProposalRepository. It needs the
// profile repository to apply pairing side effects on Confirm, like the SQL
// implementation does inside its transaction.
type ProposalRepository struct {
	mu        sync.Mutex
	nextID    uint
	proposals map[uint]*models.PairProposal
	profiles  *ProfileRepository
}

// NewProposalRepository creates an empty in-memory ProposalRepository bound
// to the given profile repository.
func NewProposalRepository(profiles *ProfileRepository) *ProposalRepository {
	return &ProposalRepository{
		nextID:    1,
		proposals: make(map[uint]*models.PairProposal),
		profiles:  profiles,
	}
}

// Seed inserts a proposal directly and returns it for convenience.
func (r *ProposalRepository) Seed(proposal models.PairProposal) *models.PairProposal {
	_ = r.Create(context.Background(), &proposal)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposals[proposal.ID]
}

func (r *ProposalRepository) Create(ctx context.Context, proposal *models.PairProposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if proposal.DateProposed.IsZero() {
		proposal.DateProposed = time.Now()
	}
	if proposal.ID == 0 {
		proposal.ID = r.nextID
	}
	if proposal.ID >= r.nextID {
		r.nextID = proposal.ID + 1
	}
	stored := *proposal
	r.proposals[stored.ID] = &stored
	return nil
}

func (r *ProposalRepository) GetByID(ctx context.Context, proposalID uint) (*models.PairProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposal, ok := r.proposals[proposalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *proposal
	return &copied, nil
}

func (r *ProposalRepository) FindPendingBetween(ctx context.Context, profileID1, profileID2 uint) (*models.PairProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, proposal := range r.proposals {
		if between(proposal, profileID1, profileID2) && proposal.Pending() {
			copied := *proposal
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *ProposalRepository) HasRejectedBetween(ctx context.Context, profileID1, profileID2 uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, proposal := range r.proposals {
		if between(proposal, profileID1, profileID2) && proposal.DateRejected != nil {
			return true, nil
		}
	}
	return false, nil
}

func (r *ProposalRepository) ListByProfile(ctx context.Context, profileID uint, status models.ProposalStatus) ([]models.PairProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var proposals []models.PairProposal
	for _, proposal := range r.proposals {
		if !proposal.Touches(profileID) {
			continue
		}
		if status != "" && proposal.Status() != status {
			continue
		}
		proposals = append(proposals, *proposal)
	}
	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].DateProposed.After(proposals[j].DateProposed)
	})
	return proposals, nil
}

func (r *ProposalRepository) PartnerIDs(ctx context.Context, profileID uint, status models.ProposalStatus) ([]uint, error) {
	proposals, err := r.ListByProfile(ctx, profileID, status)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(proposals))
	var ids []uint
	for _, proposal := range proposals {
		other := proposal.CounterpartyID(profileID)
		if other == profileID || seen[other] {
			continue
		}
		seen[other] = true
		ids = append(ids, other)
	}
	return ids, nil
}

func (r *ProposalRepository) Confirm(ctx context.Context, proposalID, actingProfileID uint, now time.Time) (*models.PairProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposal, ok := r.proposals[proposalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if proposal.ToProfileID != actingProfileID {
		return nil, storage.ErrNotProposalRecipient
	}
	if !proposal.Pending() {
		return nil, storage.ErrProposalNotPending
	}
	confirmedAt := now
	proposal.DateConfirmed = &confirmedAt
	if err := r.setPair(proposal.FromProfileID, proposal.ToProfileID); err != nil {
		return nil, err
	}
	copied := *proposal
	return &copied, nil
}

func (r *ProposalRepository) Reject(ctx context.Context, proposalID, actingProfileID uint, reason string, now time.Time) (*models.PairProposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proposal, ok := r.proposals[proposalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if proposal.ToProfileID != actingProfileID {
		return nil, storage.ErrNotProposalRecipient
	}
	if !proposal.Pending() {
		return nil, storage.ErrProposalNotPending
	}
	rejectedAt := now
	proposal.DateRejected = &rejectedAt
	proposal.ReasonRejected = reason
	copied := *proposal
	return &copied, nil
}

// setPair mirrors the SQL repository: displaced partners are unpaired and
// both sides point at each other afterwards.
func (r *ProposalRepository) setPair(aID, bID uint) error {
	r.profiles.mu.Lock()
	defer r.profiles.mu.Unlock()
	for _, id := range []uint{aID, bID} {
		profile, ok := r.profiles.profiles[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		old := profile.PairedWithID
		if old == nil || *old == aID || *old == bID {
			continue
		}
		if displaced, ok := r.profiles.profiles[*old]; ok {
			displaced.PairedWithID = nil
		}
	}
	a, b := aID, bID
	r.profiles.profiles[aID].PairedWithID = &b
	r.profiles.profiles[bID].PairedWithID = &a
	return nil
}

func between(p *models.PairProposal, profileID1, profileID2 uint) bool {
	return (p.FromProfileID == profileID1 && p.ToProfileID == profileID2) ||
		(p.FromProfileID == profileID2 && p.ToProfileID == profileID1)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsCandidate(haystack []models.Candidate, needle models.Candidate) bool {
	for _, c := range haystack {
		if c == needle {
			return true
		}
	}
	return false
}
