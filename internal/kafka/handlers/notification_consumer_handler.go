package kafkahandlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/sbuss/voteswap/internal/events"
	"github.com/sbuss/voteswap/internal/websocket"
)

// NotificationConsumerLogic forwards notification events from Kafka to the
// websocket hub for real-time delivery.
type NotificationConsumerLogic struct {
	hub *websocket.Hub
}

// NewNotificationConsumerLogic creates a new instance of NotificationConsumerLogic.
func NewNotificationConsumerLogic(hub *websocket.Hub) *NotificationConsumerLogic {
	if hub == nil {
		log.Panic("websocket hub cannot be nil")
	}
	return &NotificationConsumerLogic{hub: hub}
}

// HandleNotification is the MessageHandler passed to the Kafka consumer.
// Malformed payloads are skipped (offset committed); the hub takes care of
// profiles that are not currently connected.
func (h *NotificationConsumerLogic) HandleNotification(ctx context.Context, msg *kafka.Message) error {
	var notification events.Notification
	if err := json.Unmarshal(msg.Value, &notification); err != nil {
		log.Printf("Error unmarshalling notification (Value: '%s'): %v. This message will be skipped.", string(msg.Value), err)
		return nil
	}

	h.hub.Deliver(&notification)
	return nil
}
