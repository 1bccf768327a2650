package relay

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub 维护在线客户端与房间订阅表。
// rooms 以房间ID为键，值是订阅该房间的客户端集合；
// 所有访问都由互斥锁保护，状态仅存在于本进程内存中。
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

// NewHub 创建一个新的 Hub。
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

// Register 注册一个新连接的客户端。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	log.Printf("客户端已注册: UserID %d", c.UserID)
}

// Unregister 注销客户端，将其从所有已订阅房间移除并关闭发送通道。
// 对同一客户端重复调用是安全的。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for roomID := range c.rooms {
		h.removeFromRoomLocked(c, roomID)
	}
	close(c.send)
	log.Printf("客户端已注销: UserID %d", c.UserID)
}

// Subscribe 将客户端加入房间的订阅集合。房间不存在时创建。
func (h *Hub) Subscribe(c *Client, roomID string) {
	if roomID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[roomID] = members
	}
	members[c] = true
	c.rooms[roomID] = true
}

// Unsubscribe 将客户端移出房间的订阅集合。
func (h *Hub) Unsubscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(c, roomID)
}

// removeFromRoomLocked 需要持有 h.mu。
func (h *Hub) removeFromRoomLocked(c *Client, roomID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.rooms, roomID)
	// 空房间从订阅表里清掉，避免无界增长
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomSize 返回房间当前的订阅者数量。
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom 将 payload 投递给房间内的所有订阅者。
// except 不为 nil 时跳过该客户端（如打字状态不回显给发送者）。
// 发送通道已满的客户端视为迟滞连接，直接丢弃该消息。
func (h *Hub) BroadcastToRoom(roomID string, payload []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		if c == except {
			continue
		}
		select {
		case c.send <- payload:
		default:
			log.Printf("警告: UserID %d 的发送通道已满，丢弃房间 %s 的消息。", c.UserID, roomID)
		}
	}
}

// DeliverRoomEvent 将一条来自 Kafka 的已持久化房间消息
// 包装为 receive_message 事件投递给房间内的所有订阅者。
func (h *Hub) DeliverRoomEvent(ev *RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("错误: 无法序列化房间事件 (房间 %s): %v", ev.RoomID, err)
		return
	}
	payload, err := json.Marshal(Envelope{
		Event:  EventReceiveMessage,
		RoomID: ev.RoomID,
		Data:   data,
	})
	if err != nil {
		log.Printf("错误: 无法序列化房间事件信封 (房间 %s): %v", ev.RoomID, err)
		return
	}
	h.BroadcastToRoom(ev.RoomID, payload, nil)
}

// HandleEnvelope 分发来自客户端的一个事件。
// send_message 回显给包括发送者在内的所有订阅者；
// typing/stop_typing 只发给发送者以外的订阅者。
func (h *Hub) HandleEnvelope(c *Client, env Envelope) {
	switch env.Event {
	case EventJoinRoom:
		h.Subscribe(c, env.RoomID)
	case EventLeaveRoom:
		h.Unsubscribe(c, env.RoomID)
	case EventSendMessage:
		payload, err := h.buildOutbound(EventReceiveMessage, env, c)
		if err != nil {
			log.Printf("错误: 无法构造来自 UserID %d 的消息事件: %v", c.UserID, err)
			return
		}
		h.BroadcastToRoom(env.RoomID, payload, nil)
	case EventTyping:
		payload, err := h.buildOutbound(EventUserTyping, env, c)
		if err != nil {
			log.Printf("错误: 无法构造来自 UserID %d 的打字事件: %v", c.UserID, err)
			return
		}
		h.BroadcastToRoom(env.RoomID, payload, c)
	case EventStopTyping:
		payload, err := h.buildOutbound(EventUserStoppedTyping, env, c)
		if err != nil {
			log.Printf("错误: 无法构造来自 UserID %d 的停止打字事件: %v", c.UserID, err)
			return
		}
		h.BroadcastToRoom(env.RoomID, payload, c)
	default:
		log.Printf("收到未知类型的事件: %s (UserID %d)", env.Event, c.UserID)
	}
}

// buildOutbound 在客户端提供的数据上补充服务端认证过的发送者ID和接收时间。
func (h *Hub) buildOutbound(event string, env Envelope, sender *Client) ([]byte, error) {
	data := make(map[string]interface{})
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, err
		}
	}
	data["senderId"] = sender.UserID
	data["timestamp"] = time.Now().UTC()

	rawData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, RoomID: env.RoomID, Data: rawData})
}
