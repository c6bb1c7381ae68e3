package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
)

// ProfileRepository defines the interface for profile data operations.
// The eligibility queries all share the resolver's baseline filter: active,
// unpaired profiles only.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	// FindEligibleByIDs returns the active, unpaired profiles among ids whose
	// state is in states and whose preferred candidate is in candidates.
	FindEligibleByIDs(ctx context.Context, ids []uint, states []string, candidates []models.Candidate) ([]models.Profile, error)
	// FindEligibleRandom returns active, unpaired, random-opted-in profiles
	// matching the state/candidate filters, excluding excludeIDs.
	FindEligibleRandom(ctx context.Context, states []string, candidates []models.Candidate, excludeIDs []uint) ([]models.Profile, error)
	GetDB() *gorm.DB
}

// gormProfileRepository implements ProfileRepository using GORM.
type gormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GORM-based ProfileRepository.
func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	return &gormProfileRepository{db: db}
}

func (r *gormProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID retrieves a profile by its ID.
func (r *gormProfileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).First(&profile, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &profile, nil
}

// GetByIDs retrieves the profiles for all the given IDs, in no defined order.
func (r *gormProfileRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	return profiles, err
}

func (r *gormProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

func (r *gormProfileRepository) FindEligibleByIDs(ctx context.Context, ids []uint, states []string, candidates []models.Candidate) ([]models.Profile, error) {
	if len(ids) == 0 || len(states) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Where("active = ?", true).
		Where("paired_with_id IS NULL").
		Where("state IN ?", states).
		Where("preferred_candidate IN ?", candidates).
		Find(&profiles).Error
	return profiles, err
}

func (r *gormProfileRepository) FindEligibleRandom(ctx context.Context, states []string, candidates []models.Candidate, excludeIDs []uint) ([]models.Profile, error) {
	if len(states) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).
		Where("allow_random = ?", true).
		Where("active = ?", true).
		Where("paired_with_id IS NULL").
		Where("state IN ?", states).
		Where("preferred_candidate IN ?", candidates)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	var profiles []models.Profile
	err := q.Find(&profiles).Error
	return profiles, err
}

func (r *gormProfileRepository) GetDB() *gorm.DB {
	return r.db
}
