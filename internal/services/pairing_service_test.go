package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/events"
	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage/storagetest"
)

type sentMessage struct {
	topic   string
	key     []byte
	payload []byte
}

// fakeProducer records published messages instead of talking to Kafka.
type fakeProducer struct {
	messages []sentMessage
	err      error
}

func (p *fakeProducer) SendMessage(ctx context.Context, topic string, key, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, sentMessage{topic: topic, key: key, payload: payload})
	return nil
}

func (p *fakeProducer) Close() {}

func (p *fakeProducer) byTopic(topic string) []sentMessage {
	var out []sentMessage
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type pairingFixture struct {
	profiles  *storagetest.ProfileRepository
	proposals *storagetest.ProposalRepository
	producer  *fakeProducer
	service   PairingService
}

func newPairingFixture(t *testing.T) *pairingFixture {
	t.Helper()
	profiles := storagetest.NewProfileRepository()
	proposals := storagetest.NewProposalRepository(profiles)
	producer := &fakeProducer{}
	cfg := config.KafkaConfig{
		ProposalsTopic:     "voteswap-proposals",
		NotificationsTopic: "voteswap-notifications",
	}
	return &pairingFixture{
		profiles:  profiles,
		proposals: proposals,
		producer:  producer,
		service:   NewPairingService(profiles, proposals, producer, cfg),
	}
}

func (f *pairingFixture) addVoter(name string) *models.Profile {
	return f.profiles.Seed(models.Profile{
		Name:               name,
		State:              "Florida",
		PreferredCandidate: models.CandidateJohnson,
		Active:             true,
	})
}

func TestProposeSwapPublishesEvent(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")

	if err := f.service.ProposeSwap(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("ProposeSwap failed: %v", err)
	}

	published := f.producer.byTopic("voteswap-proposals")
	if len(published) != 1 {
		t.Fatalf("got %d published events, want 1", len(published))
	}
	var event events.ProposalRequested
	if err := json.Unmarshal(published[0].payload, &event); err != nil {
		t.Fatalf("unmarshalling published event failed: %v", err)
	}
	if event.FromProfileID != alice.ID || event.ToProfileID != bob.ID {
		t.Errorf("event parties = %d -> %d, want %d -> %d", event.FromProfileID, event.ToProfileID, alice.ID, bob.ID)
	}
	if event.EventID == "" {
		t.Error("event should carry a non-empty EventID")
	}
}

func TestProposeSwapValidations(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	carol := f.addVoter("carol")
	dave := f.addVoter("dave")

	// bob already committed to a partner.
	partner := f.addVoter("partner")
	bob.PairedWithID = &partner.ID
	if err := f.profiles.Update(context.Background(), bob); err != nil {
		t.Fatalf("seeding paired profile failed: %v", err)
	}

	// alice and carol already have a pending proposal.
	f.proposals.Seed(models.PairProposal{FromProfileID: carol.ID, ToProfileID: alice.ID, DateProposed: time.Now()})

	// alice and dave rejected each other before.
	when := time.Now()
	f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: dave.ID, DateProposed: when.Add(-time.Hour), DateRejected: &when})

	tests := []struct {
		name    string
		from    uint
		to      uint
		wantErr error
	}{
		{"self proposal", alice.ID, alice.ID, ErrSelfProposal},
		{"unknown proposer", 4242, bob.ID, ErrProfileNotFound},
		{"unknown counterparty", alice.ID, 4242, ErrCounterpartyNotFound},
		{"counterparty already paired", alice.ID, bob.ID, ErrAlreadyPaired},
		{"pending proposal exists either direction", alice.ID, carol.ID, ErrProposalExists},
		{"previously rejected pair", alice.ID, dave.ID, ErrPairRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.ProposeSwap(context.Background(), tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ProposeSwap = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(f.producer.messages) != 0 {
		t.Errorf("rejected proposals still published %d events", len(f.producer.messages))
	}
}

func proposalEventMessage(t *testing.T, event events.ProposalRequested) *confluentKafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshalling event failed: %v", err)
	}
	return &confluentKafka.Message{Value: payload}
}

func TestProcessProposalEventCreatesPendingProposal(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")

	when := time.Date(2016, 10, 15, 12, 0, 0, 0, time.UTC)
	msg := proposalEventMessage(t, events.ProposalRequested{
		EventID:       "evt-1",
		FromProfileID: alice.ID,
		ToProfileID:   bob.ID,
		Timestamp:     when,
	})
	if err := f.service.ProcessProposalEvent(context.Background(), msg); err != nil {
		t.Fatalf("ProcessProposalEvent failed: %v", err)
	}

	proposal, err := f.proposals.FindPendingBetween(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("FindPendingBetween failed: %v", err)
	}
	if proposal == nil {
		t.Fatal("expected a pending proposal to be created")
	}
	if !proposal.DateProposed.Equal(when) {
		t.Errorf("DateProposed = %v, want event timestamp %v", proposal.DateProposed, when)
	}

	notifications := f.producer.byTopic("voteswap-notifications")
	if len(notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifications))
	}
	var note events.Notification
	if err := json.Unmarshal(notifications[0].payload, &note); err != nil {
		t.Fatalf("unmarshalling notification failed: %v", err)
	}
	if note.RecipientProfileID != bob.ID || note.Kind != events.KindProposalReceived {
		t.Errorf("notification = %+v, want recipient %d kind %s", note, bob.ID, events.KindProposalReceived)
	}

	// Redelivery of the same event must not create a second proposal.
	if err := f.service.ProcessProposalEvent(context.Background(), msg); err != nil {
		t.Fatalf("redelivered ProcessProposalEvent failed: %v", err)
	}
	all, err := f.proposals.ListByProfile(context.Background(), alice.ID, "")
	if err != nil {
		t.Fatalf("ListByProfile failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("redelivery created %d proposals, want 1", len(all))
	}
}

func TestProcessProposalEventDropsInvalid(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")

	// Malformed payloads and stale validation failures both commit (nil).
	if err := f.service.ProcessProposalEvent(context.Background(), &confluentKafka.Message{Value: []byte("not json")}); err != nil {
		t.Errorf("malformed payload should be dropped, got %v", err)
	}
	msg := proposalEventMessage(t, events.ProposalRequested{
		EventID:       "evt-gone",
		FromProfileID: alice.ID,
		ToProfileID:   999,
		Timestamp:     time.Now(),
	})
	if err := f.service.ProcessProposalEvent(context.Background(), msg); err != nil {
		t.Errorf("event for missing counterparty should be dropped, got %v", err)
	}
	if all, _ := f.proposals.ListByProfile(context.Background(), alice.ID, ""); len(all) != 0 {
		t.Errorf("invalid events still created %d proposals", len(all))
	}
}

func TestConfirmProposalPairsBothProfiles(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	proposal := f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: time.Now()})

	confirmed, err := f.service.ConfirmProposal(context.Background(), bob.ID, proposal.ID)
	if err != nil {
		t.Fatalf("ConfirmProposal failed: %v", err)
	}
	if confirmed.Status() != models.ProposalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status())
	}

	gotAlice, _ := f.profiles.GetByID(context.Background(), alice.ID)
	gotBob, _ := f.profiles.GetByID(context.Background(), bob.ID)
	if gotAlice.PairedWithID == nil || *gotAlice.PairedWithID != bob.ID {
		t.Errorf("alice paired with %v, want %d", gotAlice.PairedWithID, bob.ID)
	}
	if gotBob.PairedWithID == nil || *gotBob.PairedWithID != alice.ID {
		t.Errorf("bob paired with %v, want %d", gotBob.PairedWithID, alice.ID)
	}

	notifications := f.producer.byTopic("voteswap-notifications")
	if len(notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifications))
	}
	var note events.Notification
	if err := json.Unmarshal(notifications[0].payload, &note); err != nil {
		t.Fatalf("unmarshalling notification failed: %v", err)
	}
	if note.RecipientProfileID != alice.ID || note.Kind != events.KindProposalConfirmed {
		t.Errorf("notification = %+v, want proposer %d kind %s", note, alice.ID, events.KindProposalConfirmed)
	}
}

func TestConfirmProposalDisplacesPreviousPartner(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	old := f.addVoter("old partner")

	// bob was paired with old before.
	bob.PairedWithID = &old.ID
	old.PairedWithID = &bob.ID
	_ = f.profiles.Update(context.Background(), bob)
	_ = f.profiles.Update(context.Background(), old)

	proposal := f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: time.Now()})
	if _, err := f.service.ConfirmProposal(context.Background(), bob.ID, proposal.ID); err != nil {
		t.Fatalf("ConfirmProposal failed: %v", err)
	}

	gotOld, _ := f.profiles.GetByID(context.Background(), old.ID)
	if gotOld.PairedWithID != nil {
		t.Errorf("displaced partner still paired with %d", *gotOld.PairedWithID)
	}
	gotBob, _ := f.profiles.GetByID(context.Background(), bob.ID)
	if gotBob.PairedWithID == nil || *gotBob.PairedWithID != alice.ID {
		t.Errorf("bob paired with %v, want %d", gotBob.PairedWithID, alice.ID)
	}
}

func TestRejectProposalIsTerminal(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	proposal := f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: time.Now()})

	rejected, err := f.service.RejectProposal(context.Background(), bob.ID, proposal.ID, "already found a partner")
	if err != nil {
		t.Fatalf("RejectProposal failed: %v", err)
	}
	if rejected.Status() != models.ProposalStatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status())
	}
	if rejected.ReasonRejected != "already found a partner" {
		t.Errorf("reason = %q", rejected.ReasonRejected)
	}

	// No pairing side effects on reject.
	gotAlice, _ := f.profiles.GetByID(context.Background(), alice.ID)
	if gotAlice.PairedWithID != nil {
		t.Error("reject must not pair profiles")
	}

	// The terminal state cannot transition again.
	if _, err := f.service.ConfirmProposal(context.Background(), bob.ID, proposal.ID); !errors.Is(err, ErrProposalNotPending) {
		t.Errorf("confirm after reject = %v, want ErrProposalNotPending", err)
	}
	if _, err := f.service.RejectProposal(context.Background(), bob.ID, proposal.ID, "again"); !errors.Is(err, ErrProposalNotPending) {
		t.Errorf("double reject = %v, want ErrProposalNotPending", err)
	}
}

func TestDecideProposalAuthorization(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	proposal := f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: time.Now()})

	// Only the recipient decides; the proposer cannot confirm their own offer.
	if _, err := f.service.ConfirmProposal(context.Background(), alice.ID, proposal.ID); !errors.Is(err, ErrNotProposalRecipient) {
		t.Errorf("proposer confirm = %v, want ErrNotProposalRecipient", err)
	}
	if _, err := f.service.RejectProposal(context.Background(), alice.ID, proposal.ID, "no"); !errors.Is(err, ErrNotProposalRecipient) {
		t.Errorf("proposer reject = %v, want ErrNotProposalRecipient", err)
	}
	if _, err := f.service.ConfirmProposal(context.Background(), bob.ID, 31337); !errors.Is(err, ErrProposalNotFound) {
		t.Errorf("unknown proposal = %v, want ErrProposalNotFound", err)
	}
}

func TestListProposalsIncludesPartyInfo(t *testing.T) {
	f := newPairingFixture(t)
	alice := f.addVoter("alice")
	bob := f.addVoter("bob")
	carol := f.addVoter("carol")

	now := time.Now()
	f.proposals.Seed(models.PairProposal{FromProfileID: alice.ID, ToProfileID: bob.ID, DateProposed: now.Add(-2 * time.Hour)})
	rejectedAt := now
	f.proposals.Seed(models.PairProposal{FromProfileID: carol.ID, ToProfileID: alice.ID, DateProposed: now.Add(-time.Hour), DateRejected: &rejectedAt})

	all, err := f.service.ListProposals(context.Background(), alice.ID, "")
	if err != nil {
		t.Fatalf("ListProposals failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d proposals, want 2", len(all))
	}
	// Newest first.
	if all[0].FromProfileID != carol.ID {
		t.Errorf("first proposal from %d, want newest (from carol %d)", all[0].FromProfileID, carol.ID)
	}
	if all[0].From == nil || all[0].From.Name != "carol" || all[0].To == nil || all[0].To.Name != "alice" {
		t.Errorf("party info not populated: from=%+v to=%+v", all[0].From, all[0].To)
	}

	pending, err := f.service.ListProposals(context.Background(), alice.ID, models.ProposalStatusPending)
	if err != nil {
		t.Fatalf("ListProposals(pending) failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ToProfileID != bob.ID {
		t.Errorf("pending filter returned %d proposals", len(pending))
	}
}
