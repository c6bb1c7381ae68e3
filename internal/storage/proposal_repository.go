package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sbuss/voteswap/internal/models"
)

// Terminal-transition errors surfaced by the transactional operations. They
// are declared here rather than in services because the repository owns the
// locked read that decides them.
var (
	// ErrProposalNotPending means the proposal already reached a terminal
	// state; a concurrent confirm/reject loser sees this after the lock.
	ErrProposalNotPending = errors.New("proposal is no longer pending")
	// ErrNotProposalRecipient means the acting profile is not the recipient
	// of the proposal and may not decide it.
	ErrNotProposalRecipient = errors.New("profile is not the recipient of this proposal")
)

// ProposalRepository defines the interface for pair proposal data operations.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.PairProposal) error
	GetByID(ctx context.Context, proposalID uint) (*models.PairProposal, error)
	// FindPendingBetween returns a pending proposal between the two profiles
	// in either direction, or nil if none exists.
	FindPendingBetween(ctx context.Context, profileID1, profileID2 uint) (*models.PairProposal, error)
	// HasRejectedBetween reports whether any rejected proposal exists between
	// the two profiles in either direction.
	HasRejectedBetween(ctx context.Context, profileID1, profileID2 uint) (bool, error)
	// ListByProfile returns proposals where the profile appears on either
	// side, optionally filtered by status, newest first.
	ListByProfile(ctx context.Context, profileID uint, status models.ProposalStatus) ([]models.PairProposal, error)
	// PartnerIDs returns the de-duplicated IDs of every counterparty the
	// profile has a proposal with in the given status, in either direction.
	PartnerIDs(ctx context.Context, profileID uint, status models.ProposalStatus) ([]uint, error)
	// Confirm atomically confirms a pending proposal on behalf of the
	// recipient and pairs the two profiles, displacing any previous partners.
	Confirm(ctx context.Context, proposalID, actingProfileID uint, now time.Time) (*models.PairProposal, error)
	// Reject atomically rejects a pending proposal on behalf of the
	// recipient, recording the reason. No pairing side effects.
	Reject(ctx context.Context, proposalID, actingProfileID uint, reason string, now time.Time) (*models.PairProposal, error)
}

type gormProposalRepository struct {
	db *gorm.DB
}

// NewGormProposalRepository creates a new GORM-based ProposalRepository.
func NewGormProposalRepository(db *gorm.DB) ProposalRepository {
	return &gormProposalRepository{db: db}
}

func (r *gormProposalRepository) Create(ctx context.Context, proposal *models.PairProposal) error {
	if proposal.DateProposed.IsZero() {
		proposal.DateProposed = time.Now()
	}
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *gormProposalRepository) GetByID(ctx context.Context, proposalID uint) (*models.PairProposal, error) {
	var proposal models.PairProposal
	err := r.db.WithContext(ctx).First(&proposal, proposalID).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// betweenClause matches proposals between two profiles in either direction.
func betweenClause(db *gorm.DB, profileID1, profileID2 uint) *gorm.DB {
	return db.Where(
		"(from_profile_id = ? AND to_profile_id = ?) OR (from_profile_id = ? AND to_profile_id = ?)",
		profileID1, profileID2, profileID2, profileID1)
}

// statusClause filters by derived lifecycle status.
func statusClause(db *gorm.DB, status models.ProposalStatus) *gorm.DB {
	switch status {
	case models.ProposalStatusPending:
		return db.Where("date_confirmed IS NULL AND date_rejected IS NULL")
	case models.ProposalStatusConfirmed:
		return db.Where("date_confirmed IS NOT NULL")
	case models.ProposalStatusRejected:
		return db.Where("date_rejected IS NOT NULL")
	}
	return db
}

func (r *gormProposalRepository) FindPendingBetween(ctx context.Context, profileID1, profileID2 uint) (*models.PairProposal, error) {
	var proposal models.PairProposal
	q := betweenClause(r.db.WithContext(ctx).Model(&models.PairProposal{}), profileID1, profileID2)
	err := statusClause(q, models.ProposalStatusPending).First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No pending proposal found is not an error here
		}
		return nil, err
	}
	return &proposal, nil
}

func (r *gormProposalRepository) HasRejectedBetween(ctx context.Context, profileID1, profileID2 uint) (bool, error) {
	var count int64
	q := betweenClause(r.db.WithContext(ctx).Model(&models.PairProposal{}), profileID1, profileID2)
	err := statusClause(q, models.ProposalStatusRejected).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormProposalRepository) ListByProfile(ctx context.Context, profileID uint, status models.ProposalStatus) ([]models.PairProposal, error) {
	var proposals []models.PairProposal
	q := r.db.WithContext(ctx).Model(&models.PairProposal{}).
		Where("from_profile_id = ? OR to_profile_id = ?", profileID, profileID)
	if status != "" {
		q = statusClause(q, status)
	}
	err := q.Order("date_proposed DESC").Find(&proposals).Error
	return proposals, err
}

func (r *gormProposalRepository) PartnerIDs(ctx context.Context, profileID uint, status models.ProposalStatus) ([]uint, error) {
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

// Confirm runs the whole confirm transition in one transaction: the proposal
// row is locked before its state is read, so a concurrent confirm/reject on
// the same proposal waits and then fails with ErrProposalNotPending instead
// of double-applying.
func (r *gormProposalRepository) Confirm(ctx context.Context, proposalID, actingProfileID uint, now time.Time) (*models.PairProposal, error) {
	var confirmed models.PairProposal
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.ToProfileID != actingProfileID {
			return ErrNotProposalRecipient
		}
		if !proposal.Pending() {
			return ErrProposalNotPending
		}

		if err := tx.Model(proposal).Update("date_confirmed", now).Error; err != nil {
			return err
		}
		proposal.DateConfirmed = &now

		if err := setPair(tx, proposal.FromProfileID, proposal.ToProfileID); err != nil {
			return err
		}

		confirmed = *proposal
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &confirmed, nil
}

func (r *gormProposalRepository) Reject(ctx context.Context, proposalID, actingProfileID uint, reason string, now time.Time) (*models.PairProposal, error) {
	var rejected models.PairProposal
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		proposal, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.ToProfileID != actingProfileID {
			return ErrNotProposalRecipient
		}
		if !proposal.Pending() {
			return ErrProposalNotPending
		}

		updates := map[string]interface{}{
			"date_rejected":   now,
			"reason_rejected": reason,
		}
		if err := tx.Model(proposal).Updates(updates).Error; err != nil {
			return err
		}
		proposal.DateRejected = &now
		proposal.ReasonRejected = reason

		rejected = *proposal
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &rejected, nil
}

// lockProposal reads the proposal under a FOR UPDATE row lock.
func lockProposal(tx *gorm.DB, proposalID uint) (*models.PairProposal, error) {
	var proposal models.PairProposal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&proposal, proposalID).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// setPair makes a and b each other's partner. Any existing partner of either
// side is unpaired first, so the relation stays symmetric and capped at one.
// Must run inside a transaction.
func setPair(tx *gorm.DB, aID, bID uint) error {
	profiles := make(map[uint]*models.Profile, 2)
	for _, id := range []uint{aID, bID} {
		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&profile, id).Error; err != nil {
			return err
		}
		profiles[id] = &profile
	}

	// Unpair displaced partners. A partner can't be one of the two profiles
	// being paired unless a and b were already paired with each other.
	for _, profile := range profiles {
		old := profile.PairedWithID
		if old == nil || *old == aID || *old == bID {
			continue
		}
		if err := tx.Model(&models.Profile{}).
			Where("id = ?", *old).
			Update("paired_with_id", nil).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&models.Profile{}).
		Where("id = ?", aID).
		Update("paired_with_id", bID).Error; err != nil {
		return err
	}
	return tx.Model(&models.Profile{}).
		Where("id = ?", bID).
		Update("paired_with_id", aID).Error
}
