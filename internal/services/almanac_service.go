package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

// ErrStateNotFound means the profile's state has no record in the almanac.
// This is a data inconsistency; callers must not default a classification,
// since that would misroute a voter into the wrong search strategy.
var ErrStateNotFound = errors.New("州在年鉴中不存在")

// AlmanacService 提供选情年鉴的只读查询。
type AlmanacService interface {
	// CurrentState returns the current classification for the named state.
	CurrentState(ctx context.Context, name string) (*models.State, error)
	// SafeStatePool returns safe states ordered ascending by safe rank
	// (most safely decided first).
	SafeStatePool(ctx context.Context) ([]models.StateRank, error)
	// SwingStatePool returns still-undecided swing states ordered ascending
	// by tipping point rank (closest race first).
	SwingStatePool(ctx context.Context) ([]models.StateRank, error)
}

type almanacService struct {
	stateRepo storage.StateRepository
}

// NewAlmanacService creates a new AlmanacService instance. Pass a cached
// repository to bound read load; the service is agnostic to it.
func NewAlmanacService(stateRepo storage.StateRepository) AlmanacService {
	return &almanacService{stateRepo: stateRepo}
}

func (s *almanacService) CurrentState(ctx context.Context, name string) (*models.State, error) {
	state, err := s.stateRepo.GetCurrent(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrStateNotFound, name)
		}
		return nil, fmt.Errorf("almanac lookup for %q failed: %w", name, err)
	}
	return state, nil
}

func (s *almanacService) SafeStatePool(ctx context.Context) ([]models.StateRank, error) {
	pool, err := s.stateRepo.SafeStatePool(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading safe state pool failed: %w", err)
	}
	return pool, nil
}

func (s *almanacService) SwingStatePool(ctx context.Context) ([]models.StateRank, error) {
	pool, err := s.stateRepo.SwingStatePool(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading swing state pool failed: %w", err)
	}
	return pool, nil
}
