package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

var (
	ErrProfileNotFound  = errors.New("档案不存在")
	ErrInvalidCandidate = errors.New("无效的候选人")
	ErrSelfFriendship   = errors.New("不能添加自己为好友")
	ErrFriendshipExists = errors.New("好友关系已存在")
)

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	Name               *string           `json:"name,omitempty"`
	State              *string           `json:"state,omitempty"`
	PreferredCandidate *models.Candidate `json:"preferredCandidate,omitempty"`
	Reason             *string           `json:"reason,omitempty"`
	Active             *bool             `json:"active,omitempty"`
	AllowRandom        *bool             `json:"allowRandom,omitempty"`
}

// ProfileService 管理选民档案及其好友关系。
// 好友关系的来源（社交网络导入等）在系统之外，这里只提供落库入口。
type ProfileService interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, profileID uint) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profileID uint, update ProfileUpdate) (*models.Profile, error)
	ListFriends(ctx context.Context, profileID uint) ([]*models.ProfileBasicInfo, error)
	// AddFriendship records the undirected edge between two profiles.
	AddFriendship(ctx context.Context, profileID, friendProfileID uint) error
}

type profileService struct {
	profileRepo    storage.ProfileRepository
	friendshipRepo storage.FriendshipRepository
	almanac        AlmanacService
}

// NewProfileService creates a new ProfileService instance.
func NewProfileService(
	profileRepo storage.ProfileRepository,
	friendshipRepo storage.FriendshipRepository,
	almanac AlmanacService,
) ProfileService {
	return &profileService{
		profileRepo:    profileRepo,
		friendshipRepo: friendshipRepo,
		almanac:        almanac,
	}
}

func (s *profileService) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if !profile.PreferredCandidate.Valid() {
		return ErrInvalidCandidate
	}
	if profile.State != "" {
		// An unknown state would poison every later match resolution for
		// this profile, so it is refused at the door.
		if _, err := s.almanac.CurrentState(ctx, profile.State); err != nil {
			return err
		}
	}
	return s.profileRepo.Create(ctx, profile)
}

func (s *profileService) GetProfile(ctx context.Context, profileID uint) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("获取档案 %d 失败: %w", profileID, err)
	}
	return profile, nil
}

// UpdateProfile applies the non-nil fields of update.
func (s *profileService) UpdateProfile(ctx context.Context, profileID uint, update ProfileUpdate) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	updated := false
	if update.Name != nil && profile.Name != *update.Name {
		profile.Name = *update.Name
		updated = true
	}
	if update.State != nil && profile.State != *update.State {
		if _, err := s.almanac.CurrentState(ctx, *update.State); err != nil {
			return nil, err
		}
		profile.State = *update.State
		updated = true
	}
	if update.PreferredCandidate != nil && profile.PreferredCandidate != *update.PreferredCandidate {
		if !update.PreferredCandidate.Valid() {
			return nil, ErrInvalidCandidate
		}
		profile.PreferredCandidate = *update.PreferredCandidate
		updated = true
	}
	if update.Reason != nil && profile.Reason != *update.Reason {
		profile.Reason = *update.Reason
		updated = true
	}
	if update.Active != nil && profile.Active != *update.Active {
		profile.Active = *update.Active
		updated = true
	}
	if update.AllowRandom != nil && profile.AllowRandom != *update.AllowRandom {
		profile.AllowRandom = *update.AllowRandom
		updated = true
	}

	if !updated {
		return profile, nil
	}
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("更新档案 %d 失败: %w", profileID, err)
	}
	return profile, nil
}

// ListFriends retrieves the basic info for all friends of the given profile.
func (s *profileService) ListFriends(ctx context.Context, profileID uint) ([]*models.ProfileBasicInfo, error) {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, profileID)
	if err != nil {
		log.Printf("Error getting friend IDs for profile %d: %v", profileID, err)
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	if len(friendIDs) == 0 {
		return []*models.ProfileBasicInfo{}, nil
	}

	friends, err := s.profileRepo.GetByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("获取好友档案失败: %w", err)
	}
	infos := make([]*models.ProfileBasicInfo, 0, len(friends))
	for i := range friends {
		infos = append(infos, friends[i].BasicInfo())
	}
	return infos, nil
}

func (s *profileService) AddFriendship(ctx context.Context, profileID, friendProfileID uint) error {
	if profileID == friendProfileID {
		return ErrSelfFriendship
	}
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return err
	}
	if _, err := s.GetProfile(ctx, friendProfileID); err != nil {
		return err
	}

	areFriends, err := s.friendshipRepo.AreProfilesFriends(ctx, profileID, friendProfileID)
	if err != nil {
		return fmt.Errorf("检查好友关系时出错: %w", err)
	}
	if areFriends {
		return ErrFriendshipExists
	}

	friendship := &models.Friendship{
		ProfileID1: profileID,
		ProfileID2: friendProfileID,
	}
	friendship.EnsureCanonicalOrder() // Ensure ProfileID1 < ProfileID2
	if err := s.friendshipRepo.Create(ctx, friendship); err != nil {
		return fmt.Errorf("创建好友关系失败: %w", err)
	}
	return nil
}
