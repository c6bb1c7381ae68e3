package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
)

// FriendshipRepository defines the interface for friendship data operations.
type FriendshipRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	AreProfilesFriends(ctx context.Context, profileID1, profileID2 uint) (bool, error)
	GetFriendIDs(ctx context.Context, profileID uint) ([]uint, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GormFriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

// Create creates a new friendship record in the database.
// It assumes that friendship.EnsureCanonicalOrder() has been called before.
func (r *gormFriendshipRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	return r.db.WithContext(ctx).Create(friendship).Error
}

// AreProfilesFriends checks if two profiles are already friends.
func (r *gormFriendshipRepository) AreProfilesFriends(ctx context.Context, profileID1, profileID2 uint) (bool, error) {
	p1, p2 := profileID1, profileID2
	if p1 > p2 {
		p1, p2 = p2, p1 // Ensure canonical order for query
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).Where("profile_id1 = ? AND profile_id2 = ?", p1, p2).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetFriendIDs retrieves the IDs of all profiles befriended with profileID.
// Each edge is stored once in canonical order, so the profile can sit on
// either side and we query both.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, profileID uint) ([]uint, error) {
	var idsPart1 []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("profile_id1 = ?", profileID).
		Pluck("profile_id2", &idsPart1).Error
	if err != nil {
		return nil, err
	}

	var idsPart2 []uint
	err = r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("profile_id2 = ?", profileID).
		Pluck("profile_id1", &idsPart2).Error
	if err != nil {
		return nil, err
	}

	return append(idsPart1, idsPart2...), nil
}
