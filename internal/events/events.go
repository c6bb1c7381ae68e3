// Package events holds the payload types shared between the API server, the
// Kafka pipeline and the notification push server.
package events

import "time"

// Proposal event kinds carried on the notifications topic.
const (
	KindProposalReceived  = "proposal_received"
	KindProposalConfirmed = "proposal_confirmed"
	KindProposalRejected  = "proposal_rejected"
)

// ProposalRequested is published to the proposals topic when a profile asks to
// swap with another. The consumer validates again and persists the pending
// proposal; the event itself carries no authority.
type ProposalRequested struct {
	EventID       string    `json:"eventId"`
	FromProfileID uint      `json:"fromProfileId"`
	ToProfileID   uint      `json:"toProfileId"`
	Timestamp     time.Time `json:"timestamp"`
}

// Notification is published to the notifications topic and delivered verbatim
// to the recipient's websocket connection, if any.
type Notification struct {
	EventID string `json:"eventId"`
	// RecipientProfileID selects the websocket client to deliver to.
	RecipientProfileID uint   `json:"recipientProfileId"`
	Kind               string `json:"kind"`
	ProposalID         uint   `json:"proposalId"`
	// CounterpartyID is the other profile involved in the proposal.
	CounterpartyID uint      `json:"counterpartyId"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
