package chatserver

import (
	"log"
	"net/http"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/relay"
	"lingua-go/internal/storage"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	hub       *relay.Hub
	roomRepo  storage.ChatRoomRepository
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *relay.Hub, roomRepo storage.ChatRoomRepository, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		roomRepo:  roomRepo,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

// ServeWS 处理传入的 WebSocket 请求。
// 升级前先验证 token 查询参数，再把客户端恢复到其持久化的活跃房间订阅中。
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket 连接尝试失败：令牌无效: %v", err)
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	// 恢复持久化的房间订阅，断线重连后不需要客户端重新 join_room
	initialRooms, err := h.roomRepo.GetActiveRoomIDsForUser(r.Context(), userID)
	if err != nil {
		log.Printf("警告: 无法获取用户 %d 的活跃房间列表: %v", userID, err)
		initialRooms = nil
	}

	relay.ServeClientConnection(h.hub, userID, initialRooms, w, r, h.cfg.WebSocket)
}
