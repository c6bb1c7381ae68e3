package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
)

// StateRepository defines the interface for electoral almanac lookups.
// Multiple historical snapshots may exist per state name; every query here
// operates on the current snapshot (most recent updated date) only.
type StateRepository interface {
	Create(ctx context.Context, state *models.State) error
	// GetCurrent returns the current snapshot for the named state.
	// gorm.ErrRecordNotFound is returned for an unknown name.
	GetCurrent(ctx context.Context, name string) (*models.State, error)
	// SafeStatePool returns safe states ordered ascending by safe_rank.
	SafeStatePool(ctx context.Context) ([]models.StateRank, error)
	// SwingStatePool returns swing states with no safe-party designation,
	// ordered ascending by tipping_point_rank.
	SwingStatePool(ctx context.Context) ([]models.StateRank, error)
}

type gormStateRepository struct {
	db *gorm.DB
}

// NewGormStateRepository creates a new GORM-based StateRepository.
func NewGormStateRepository(db *gorm.DB) StateRepository {
	return &gormStateRepository{db: db}
}

func (r *gormStateRepository) Create(ctx context.Context, state *models.State) error {
	return r.db.WithContext(ctx).Create(state).Error
}

// current restricts a query to the most recent snapshot per state name.
// Ties on updated resolve by highest row ID.
func (r *gormStateRepository) current(ctx context.Context) *gorm.DB {
	sub := r.db.Model(&models.State{}).
		Select("MAX(id)").
		Group("name").
		Where("(name, updated) IN (?)", r.db.Model(&models.State{}).
			Select("name, MAX(updated)").
			Group("name"))
	return r.db.WithContext(ctx).Model(&models.State{}).Where("id IN (?)", sub)
}

func (r *gormStateRepository) GetCurrent(ctx context.Context, name string) (*models.State, error) {
	var state models.State
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Order("updated DESC, id DESC").
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *gormStateRepository) SafeStatePool(ctx context.Context) ([]models.StateRank, error) {
	var pool []models.StateRank
	err := r.current(ctx).
		Select("name, safe_rank AS rank").
		Where("safe_rank <> ?", models.RankNone).
		Order("safe_rank ASC, name ASC").
		Scan(&pool).Error
	return pool, err
}

func (r *gormStateRepository) SwingStatePool(ctx context.Context) ([]models.StateRank, error) {
	var pool []models.StateRank
	err := r.current(ctx).
		Select("name, tipping_point_rank AS rank").
		Where("tipping_point_rank <> ?", models.RankNone).
		Where("safe_for = ?", models.CandidateNone).
		Order("tipping_point_rank ASC, name ASC").
		Scan(&pool).Error
	return pool, err
}
