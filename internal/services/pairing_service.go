package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/events"
	"github.com/sbuss/voteswap/internal/kafka"
	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

var (
	ErrSelfProposal         = errors.New("不能向自己发起换票提议")
	ErrProposalExists       = errors.New("已存在待处理的换票提议")
	ErrCounterpartyNotFound = errors.New("对方档案不存在")
	ErrAlreadyPaired        = errors.New("一方已有配对伙伴")
	ErrPairRejected         = errors.New("双方之间已有被拒绝的提议")
	ErrProposalNotFound     = errors.New("换票提议不存在")
)

// Re-exported so handlers only depend on the services package for the full
// transition-error taxonomy.
var (
	ErrProposalNotPending   = storage.ErrProposalNotPending
	ErrNotProposalRecipient = storage.ErrNotProposalRecipient
)

// PairingService 管理换票提议的生命周期以及确认后两个档案的配对关系。
type PairingService interface {
	// ProposeSwap validates the request and publishes an intake event.
	ProposeSwap(ctx context.Context, fromProfileID, toProfileID uint) error
	// ProcessProposalEvent handles intake events from Kafka, persisting the
	// pending proposal idempotently.
	ProcessProposalEvent(ctx context.Context, kafkaMsg *confluentKafka.Message) error
	// ConfirmProposal confirms a pending proposal on behalf of its recipient
	// and pairs both profiles.
	ConfirmProposal(ctx context.Context, actingProfileID, proposalID uint) (*models.PairProposal, error)
	// RejectProposal terminally rejects a pending proposal with a reason.
	RejectProposal(ctx context.Context, actingProfileID, proposalID uint, reason string) (*models.PairProposal, error)
	// ListProposals returns proposals touching the profile, optionally
	// filtered by status, enriched with both parties' basic info.
	ListProposals(ctx context.Context, profileID uint, status models.ProposalStatus) ([]*models.PairProposalWithProfiles, error)
}

type pairingService struct {
	profileRepo  storage.ProfileRepository
	proposalRepo storage.ProposalRepository
	producer     kafka.MessageProducer
	kafkaConfig  config.KafkaConfig
}

// NewPairingService creates a new PairingService instance.
func NewPairingService(
	profileRepo storage.ProfileRepository,
	proposalRepo storage.ProposalRepository,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) PairingService {
	return &pairingService{
		profileRepo:  profileRepo,
		proposalRepo: proposalRepo,
		producer:     producer,
		kafkaConfig:  cfg,
	}
}

// ProposeSwap validates the proposal and publishes it to Kafka. The consumer
// re-validates before persisting, so a stale read here only costs a wasted
// event, never an inconsistent ledger.
func (s *pairingService) ProposeSwap(ctx context.Context, fromProfileID, toProfileID uint) error {
	if fromProfileID == toProfileID {
		return ErrSelfProposal
	}

	if _, err := s.eligibleParty(ctx, fromProfileID, ErrProfileNotFound); err != nil {
		return err
	}
	if _, err := s.eligibleParty(ctx, toProfileID, ErrCounterpartyNotFound); err != nil {
		return err
	}

	pending, err := s.proposalRepo.FindPendingBetween(ctx, fromProfileID, toProfileID)
	if err != nil {
		return fmt.Errorf("checking pending proposals between %d and %d failed: %w", fromProfileID, toProfileID, err)
	}
	if pending != nil {
		return ErrProposalExists
	}

	// A rejected proposal permanently excludes the pair from each other's
	// matches, so re-proposing is refused too.
	rejected, err := s.proposalRepo.HasRejectedBetween(ctx, fromProfileID, toProfileID)
	if err != nil {
		return fmt.Errorf("checking rejected proposals between %d and %d failed: %w", fromProfileID, toProfileID, err)
	}
	if rejected {
		return ErrPairRejected
	}

	event := events.ProposalRequested{
		EventID:       uuid.NewString(),
		FromProfileID: fromProfileID,
		ToProfileID:   toProfileID,
		Timestamp:     time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化换票提议事件失败: %w", err)
	}

	key := []byte(fmt.Sprintf("%d-%d", fromProfileID, toProfileID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.ProposalsTopic, key, payload); err != nil {
		log.Printf("Error producing proposal event to Kafka topic %s: %v", s.kafkaConfig.ProposalsTopic, err)
		return fmt.Errorf("发送换票提议到处理队列失败: %w", err)
	}

	log.Printf("Proposal event %s published for %d -> %d", event.EventID, fromProfileID, toProfileID)
	return nil
}

// eligibleParty loads a profile and checks it can take part in a new proposal.
func (s *pairingService) eligibleParty(ctx context.Context, profileID uint, notFound error) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("loading profile %d failed: %w", profileID, err)
	}
	if !profile.Unpaired() {
		return nil, ErrAlreadyPaired
	}
	return profile, nil
}

// ProcessProposalEvent handles incoming proposal events from Kafka.
func (s *pairingService) ProcessProposalEvent(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var event events.ProposalRequested
	if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
		log.Printf("Error unmarshalling proposal event from Kafka: %v, value: %s", err, string(kafkaMsg.Value))
		return nil // Commit offset for bad message
	}

	// Re-validate before persisting (idempotency for retries and protection
	// against state changes since the event was published).
	if _, err := s.eligibleParty(ctx, event.FromProfileID, ErrProfileNotFound); err != nil {
		return s.skipOrRetry(err, &event)
	}
	if _, err := s.eligibleParty(ctx, event.ToProfileID, ErrCounterpartyNotFound); err != nil {
		return s.skipOrRetry(err, &event)
	}

	existing, err := s.proposalRepo.FindPendingBetween(ctx, event.FromProfileID, event.ToProfileID)
	if err != nil {
		log.Printf("Error re-checking proposal before creation (%d -> %d): %v", event.FromProfileID, event.ToProfileID, err)
		return err // Retryable
	}
	if existing != nil {
		log.Printf("Proposal already processed or exists (%d -> %d), skipping creation.", event.FromProfileID, event.ToProfileID)
		return nil // Commit offset
	}
	rejected, err := s.proposalRepo.HasRejectedBetween(ctx, event.FromProfileID, event.ToProfileID)
	if err != nil {
		return err // Retryable
	}
	if rejected {
		log.Printf("Pair %d/%d has a rejected proposal, skipping creation.", event.FromProfileID, event.ToProfileID)
		return nil
	}

	proposal := models.PairProposal{
		FromProfileID: event.FromProfileID,
		ToProfileID:   event.ToProfileID,
		DateProposed:  event.Timestamp,
	}
	if err := s.proposalRepo.Create(ctx, &proposal); err != nil {
		log.Printf("Error saving proposal (%d -> %d) to database: %v", event.FromProfileID, event.ToProfileID, err)
		return err // Retryable
	}

	log.Printf("Proposal from %d to %d saved with ID %d", event.FromProfileID, event.ToProfileID, proposal.ID)
	s.notify(ctx, events.Notification{
		EventID:            uuid.NewString(),
		RecipientProfileID: proposal.ToProfileID,
		Kind:               events.KindProposalReceived,
		ProposalID:         proposal.ID,
		CounterpartyID:     proposal.FromProfileID,
		Timestamp:          time.Now(),
	})
	return nil
}

// skipOrRetry commits validation failures (the event can never succeed) and
// retries infrastructure errors.
func (s *pairingService) skipOrRetry(err error, event *events.ProposalRequested) error {
	switch {
	case errors.Is(err, ErrProfileNotFound),
		errors.Is(err, ErrCounterpartyNotFound),
		errors.Is(err, ErrAlreadyPaired):
		log.Printf("Dropping proposal event %s (%d -> %d): %v", event.EventID, event.FromProfileID, event.ToProfileID, err)
		return nil
	default:
		return err
	}
}

// ConfirmProposal confirms the proposal and pairs both profiles. The heavy
// lifting (row lock, terminal-state check, symmetric pairing) happens in one
// repository transaction; see ProposalRepository.Confirm.
func (s *pairingService) ConfirmProposal(ctx context.Context, actingProfileID, proposalID uint) (*models.PairProposal, error) {
	proposal, err := s.proposalRepo.Confirm(ctx, proposalID, actingProfileID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}

	log.Printf("Proposal %d confirmed by profile %d; profiles %d and %d paired.",
		proposal.ID, actingProfileID, proposal.FromProfileID, proposal.ToProfileID)
	s.notify(ctx, events.Notification{
		EventID:            uuid.NewString(),
		RecipientProfileID: proposal.FromProfileID,
		Kind:               events.KindProposalConfirmed,
		ProposalID:         proposal.ID,
		CounterpartyID:     proposal.ToProfileID,
		Timestamp:          time.Now(),
	})
	return proposal, nil
}

// RejectProposal terminally rejects the proposal. No pairing side effects.
func (s *pairingService) RejectProposal(ctx context.Context, actingProfileID, proposalID uint, reason string) (*models.PairProposal, error) {
	proposal, err := s.proposalRepo.Reject(ctx, proposalID, actingProfileID, reason, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}

	log.Printf("Proposal %d rejected by profile %d.", proposal.ID, actingProfileID)
	s.notify(ctx, events.Notification{
		EventID:            uuid.NewString(),
		RecipientProfileID: proposal.FromProfileID,
		Kind:               events.KindProposalRejected,
		ProposalID:         proposal.ID,
		CounterpartyID:     proposal.ToProfileID,
		Reason:             reason,
		Timestamp:          time.Now(),
	})
	return proposal, nil
}

func (s *pairingService) ListProposals(ctx context.Context, profileID uint, status models.ProposalStatus) ([]*models.PairProposalWithProfiles, error) {
	proposals, err := s.proposalRepo.ListByProfile(ctx, profileID, status)
	if err != nil {
		return nil, fmt.Errorf("获取换票提议列表失败: %w", err)
	}
	if len(proposals) == 0 {
		return []*models.PairProposalWithProfiles{}, nil
	}

	idSet := make(map[uint]bool, len(proposals)*2)
	var ids []uint
	for _, proposal := range proposals {
		for _, id := range []uint{proposal.FromProfileID, proposal.ToProfileID} {
			if !idSet[id] {
				idSet[id] = true
				ids = append(ids, id)
			}
		}
	}
	profiles, err := s.profileRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("获取提议双方档案失败: %w", err)
	}
	infoByID := make(map[uint]*models.ProfileBasicInfo, len(profiles))
	for i := range profiles {
		infoByID[profiles[i].ID] = profiles[i].BasicInfo()
	}

	result := make([]*models.PairProposalWithProfiles, 0, len(proposals))
	for _, proposal := range proposals {
		result = append(result, &models.PairProposalWithProfiles{
			PairProposal: proposal,
			From:         infoByID[proposal.FromProfileID],
			To:           infoByID[proposal.ToProfileID],
		})
	}
	return result, nil
}

// notify publishes a notification event best-effort; delivery failures are
// logged, never surfaced, since the state change already committed.
func (s *pairingService) notify(ctx context.Context, notification events.Notification) {
	if s.producer == nil || s.kafkaConfig.NotificationsTopic == "" {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		log.Printf("Error marshalling notification %s: %v", notification.EventID, err)
		return
	}
	key := []byte(fmt.Sprintf("%d", notification.RecipientProfileID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.NotificationsTopic, key, payload); err != nil {
		log.Printf("Error producing notification %s to topic %s: %v", notification.EventID, s.kafkaConfig.NotificationsTopic, err)
	}
}
