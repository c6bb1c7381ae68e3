package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

// MatchOptions control which tiers of the search run and whether candidates
// with a pending proposal against the querying profile are excluded.
// Rejected-proposal exclusion always applies.
type MatchOptions struct {
	Direct         bool
	FOAF           bool
	ExcludePending bool
}

// DefaultMatchOptions enables every tier and the pending exclusion.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{Direct: true, FOAF: true, ExcludePending: true}
}

// MatchService 是换票匹配的核心：给定一个档案，在好友图上找出兼容的交换对象。
type MatchService interface {
	// GetFriendMatches classifies the profile's state and either reports that
	// no swap is necessary or runs the appropriate search.
	GetFriendMatches(ctx context.Context, profileID uint) (models.MatchResult, error)
	// FindMatches runs the search for the profile's state class without the
	// no-match-necessary dispatch shortcuts.
	FindMatches(ctx context.Context, profileID uint, opts MatchOptions) ([]models.FriendMatch, error)
}

type matchService struct {
	profileRepo    storage.ProfileRepository
	friendshipRepo storage.FriendshipRepository
	proposalRepo   storage.ProposalRepository
	almanac        AlmanacService
}

// NewMatchService creates a new MatchService instance.
func NewMatchService(
	profileRepo storage.ProfileRepository,
	friendshipRepo storage.FriendshipRepository,
	proposalRepo storage.ProposalRepository,
	almanac AlmanacService,
) MatchService {
	return &matchService{
		profileRepo:    profileRepo,
		friendshipRepo: friendshipRepo,
		proposalRepo:   proposalRepo,
		almanac:        almanac,
	}
}

// GetFriendMatches finds suitable matches for the given profile.
//
// Match criteria:
//   - safe state <-> swing state
//   - counterparty's candidate in the fixed compatibility set
//
// A major-party voter in a swing state and a third-party voter in a safe
// state shouldn't change their vote, so they get the NoMatchNecessary result.
func (s *matchService) GetFriendMatches(ctx context.Context, profileID uint) (models.MatchResult, error) {
	profile, state, err := s.profileAndState(ctx, profileID)
	if err != nil {
		return models.MatchResult{}, err
	}

	if state.IsSwing() {
		if profile.PreferredCandidate.IsMajor() {
			return models.NoMatchNecessaryResult(), nil
		}
	} else {
		if profile.PreferredCandidate.IsThirdParty() {
			return models.NoMatchNecessaryResult(), nil
		}
	}

	matches, err := s.searchFor(ctx, profile, state, DefaultMatchOptions())
	if err != nil {
		return models.MatchResult{}, err
	}
	if matches == nil {
		matches = []models.FriendMatch{}
	}
	return models.MatchResult{Matches: matches}, nil
}

func (s *matchService) FindMatches(ctx context.Context, profileID uint, opts MatchOptions) ([]models.FriendMatch, error) {
	profile, state, err := s.profileAndState(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.searchFor(ctx, profile, state, opts)
}

func (s *matchService) profileAndState(ctx context.Context, profileID uint) (*models.Profile, *models.State, error) {
	profile, err := s.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProfileNotFound
		}
		return nil, nil, fmt.Errorf("loading profile %d failed: %w", profileID, err)
	}
	// An unclassifiable state propagates as a hard error; guessing a search
	// branch here would misroute the voter.
	state, err := s.almanac.CurrentState(ctx, profile.State)
	if err != nil {
		return nil, nil, err
	}
	return profile, state, nil
}

// searchFor picks the candidate pool and compatible-candidate set for the
// profile's state class and runs the tiered search.
//
// Swing-state profile: the voter is third-party in a contested state; look
// for safe-state voters whose major-party preference the voter accepts, so a
// compatible major-party vote is banked where it doesn't matter.
//
// Safe-state profile: the mirror image; look for third-party voters in
// still-undecided swing states who would accept this voter's major candidate.
func (s *matchService) searchFor(ctx context.Context, profile *models.Profile, state *models.State, opts MatchOptions) ([]models.FriendMatch, error) {
	var pool []models.StateRank
	var wanted []models.Candidate
	var err error
	if state.IsSwing() {
		pool, err = s.almanac.SafeStatePool(ctx)
		wanted = models.CompatibleMajors[profile.PreferredCandidate]
	} else {
		pool, err = s.almanac.SwingStatePool(ctx)
		wanted = models.CompatibleThirdParties[profile.PreferredCandidate]
	}
	if err != nil {
		return nil, err
	}
	return s.search(ctx, profile, pool, wanted, opts)
}

// search runs the three tiers (direct, friend-of-friend, random pool) over
// the given state pool, de-duplicating across tiers, ordering each tier by
// state rank, and finally applying the proposal-history exclusion passes.
func (s *matchService) search(ctx context.Context, profile *models.Profile, pool []models.StateRank, wanted []models.Candidate, opts MatchOptions) ([]models.FriendMatch, error) {
	if len(pool) == 0 || len(wanted) == 0 {
		return nil, nil
	}

	poolNames := make([]string, len(pool))
	rankOf := make(map[string]int, len(pool))
	for i, entry := range pool {
		poolNames[i] = entry.Name
		rankOf[entry.Name] = entry.Rank
	}

	// found tracks every profile already matched in a nearer tier so it
	// cannot reappear in a farther one. The querying profile is never a
	// candidate for itself.
	found := map[uint]bool{profile.ID: true}
	var matches []models.FriendMatch

	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("loading friends of profile %d failed: %w", profile.ID, err)
	}

	if opts.Direct {
		direct, err := s.profileRepo.FindEligibleByIDs(ctx, friendIDs, poolNames, wanted)
		if err != nil {
			return nil, fmt.Errorf("direct tier query failed: %w", err)
		}
		tier := make([]models.FriendMatch, 0, len(direct))
		for i := range direct {
			candidate := &direct[i]
			if found[candidate.ID] {
				continue
			}
			found[candidate.ID] = true
			tier = append(tier, models.FriendMatch{Profile: candidate})
		}
		sortTierByRank(tier, rankOf)
		matches = append(matches, tier...)
	}

	if opts.FOAF {
		// Traversal follows every friendship link, including friends who are
		// themselves inactive or ineligible; only the endpoints must qualify.
		friends, err := s.profileRepo.GetByIDs(ctx, friendIDs)
		if err != nil {
			return nil, fmt.Errorf("loading intermediate friends failed: %w", err)
		}
		sort.Slice(friends, func(i, j int) bool { return friends[i].ID < friends[j].ID })

		var tier []models.FriendMatch
		for i := range friends {
			through := &friends[i]
			foafIDs, err := s.friendshipRepo.GetFriendIDs(ctx, through.ID)
			if err != nil {
				return nil, fmt.Errorf("loading friends of friend %d failed: %w", through.ID, err)
			}
			foaf, err := s.profileRepo.FindEligibleByIDs(ctx, foafIDs, poolNames, wanted)
			if err != nil {
				return nil, fmt.Errorf("foaf tier query failed: %w", err)
			}
			for j := range foaf {
				candidate := &foaf[j]
				if found[candidate.ID] {
					// Don't double add
					continue
				}
				found[candidate.ID] = true
				tier = append(tier, models.FriendMatch{Profile: candidate, Through: through})
			}
		}
		sortTierByRank(tier, rankOf)
		matches = append(matches, tier...)
	}

	if profile.AllowRandom {
		excludeIDs := make([]uint, 0, len(found))
		for id := range found {
			excludeIDs = append(excludeIDs, id)
		}
		randoms, err := s.profileRepo.FindEligibleRandom(ctx, poolNames, wanted, excludeIDs)
		if err != nil {
			return nil, fmt.Errorf("random tier query failed: %w", err)
		}
		tier := make([]models.FriendMatch, 0, len(randoms))
		for i := range randoms {
			candidate := &randoms[i]
			if found[candidate.ID] {
				continue
			}
			found[candidate.ID] = true
			tier = append(tier, models.FriendMatch{Profile: candidate, IsRandom: true})
		}
		sortTierByRank(tier, rankOf)
		matches = append(matches, tier...)
	}

	// Rejected proposals exclude permanently; pending ones only on request.
	rejectedIDs, err := s.proposalRepo.PartnerIDs(ctx, profile.ID, models.ProposalStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("loading rejected proposal partners failed: %w", err)
	}
	matches = excludeMatches(matches, rejectedIDs)
	if opts.ExcludePending {
		pendingIDs, err := s.proposalRepo.PartnerIDs(ctx, profile.ID, models.ProposalStatusPending)
		if err != nil {
			return nil, fmt.Errorf("loading pending proposal partners failed: %w", err)
		}
		matches = excludeMatches(matches, pendingIDs)
	}
	return matches, nil
}

// sortTierByRank orders a single tier by pool rank of the candidate's state,
// breaking rank ties by profile ID for determinism.
func sortTierByRank(tier []models.FriendMatch, rankOf map[string]int) {
	sort.Slice(tier, func(i, j int) bool {
		ri, rj := rankOf[tier[i].Profile.State], rankOf[tier[j].Profile.State]
		if ri != rj {
			return ri < rj
		}
		return tier[i].Profile.ID < tier[j].Profile.ID
	})
}

// excludeMatches filters out matches whose profile appears in excludeIDs,
// preserving order.
func excludeMatches(matches []models.FriendMatch, excludeIDs []uint) []models.FriendMatch {
	if len(excludeIDs) == 0 || len(matches) == 0 {
		return matches
	}
	excluded := make(map[uint]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	kept := matches[:0]
	for _, match := range matches {
		if excluded[match.Profile.ID] {
			continue
		}
		kept = append(kept, match)
	}
	return kept
}
