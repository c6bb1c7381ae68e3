package notifyserver

import (
	"log"
	"net/http"
	"strconv"

	"github.com/sbuss/voteswap/internal/config"
	ws "github.com/sbuss/voteswap/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	hub *ws.Hub
	cfg config.Config
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *ws.Hub, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		cfg: cfg,
	}
}

// ServeWS 处理传入的 WebSocket 请求。
// It upgrades the HTTP connection and registers the profile with the hub so
// proposal notifications can be pushed to it.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	// Identify the profile via query parameter. This deployment trusts the
	// front proxy for identity; there is no token exchange here.
	rawID := r.URL.Query().Get("profileID")
	if rawID == "" {
		log.Println("WebSocket 连接尝试失败：缺少 profileID 参数")
		http.Error(w, "缺少 profileID 参数", http.StatusBadRequest)
		return
	}
	profileID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || profileID == 0 {
		log.Printf("WebSocket 连接尝试失败：profileID 无效: %q", rawID)
		http.Error(w, "profileID 无效", http.StatusBadRequest)
		return
	}

	log.Printf("档案 %d 尝试连接 WebSocket", profileID)
	ws.ServeWs(h.hub, uint(profileID), w, r, h.cfg.WebSocket)
}
