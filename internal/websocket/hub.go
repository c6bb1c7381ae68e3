package websocket

import (
	"encoding/json"
	"log"

	"github.com/sbuss/voteswap/internal/events"
)

// Hub maintains the set of connected profiles and delivers proposal
// notifications to them. Assumes one connection per profile ID; a new
// connection for the same profile replaces the old one.
type Hub struct {
	clients map[uint]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Notifications aimed at a specific profile.
	direct chan *events.Notification
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]*Client),
		direct:     make(chan *events.Notification, 256),
	}
}

// Deliver hands a notification to the hub for delivery to its recipient.
// Non-blocking so the Kafka consumer feeding the hub never stalls on it.
func (h *Hub) Deliver(notification *events.Notification) {
	select {
	case h.direct <- notification:
	default:
		log.Printf("警告: Hub direct channel is full. Dropping notification for profile %d", notification.RecipientProfileID)
	}
}

// Run starts the hub and listens for events on its channels.
func (h *Hub) Run() {
	log.Println("WebSocket Hub Run loop started.")
	for {
		select {
		case client := <-h.register:
			if existingClient, ok := h.clients[client.ProfileID]; ok {
				log.Printf("警告: 档案 %d 已有连接，关闭旧连接并注册新连接。", client.ProfileID)
				close(existingClient.send)
			}
			h.clients[client.ProfileID] = client
			log.Printf("客户端已注册: ProfileID %d", client.ProfileID)

		case client := <-h.unregister:
			// Only drop the stored client if it is the one unregistering; a
			// replaced connection must not tear down its successor.
			if storedClient, ok := h.clients[client.ProfileID]; ok && storedClient == client {
				delete(h.clients, client.ProfileID)
				close(client.send)
				log.Printf("客户端已注销: ProfileID %d", client.ProfileID)
			}

		case notification := <-h.direct:
			client, ok := h.clients[notification.RecipientProfileID]
			if !ok {
				// Profile is not connected to this hub instance.
				continue
			}
			payload, err := json.Marshal(notification)
			if err != nil {
				log.Printf("错误: 无法序列化通知 %s: %v", notification.EventID, err)
				continue
			}
			// Non-blocking send; a full buffer means the client is slow or
			// gone, so it is dropped.
			select {
			case client.send <- payload:
			default:
				log.Printf("警告: ProfileID %d 的发送通道已满或关闭，移除客户端。", notification.RecipientProfileID)
				close(client.send)
				delete(h.clients, notification.RecipientProfileID)
			}
		}
	}
}
