package relay

import (
	"encoding/json"
	"time"
)

// 客户端发来的事件名。
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
)

// 服务端下发的事件名。
const (
	EventReceiveMessage    = "receive_message"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
)

// Envelope 是 WebSocket 双向通用的事件信封。
// RoomID 是不透明的房间标识，中继层不校验其是否存在于数据库。
type Envelope struct {
	Event  string          `json:"event"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RoomEvent 是 API 服务端通过 Kafka 投递给中继服务的房间事件载荷，
// 携带一条已持久化的房间消息。
type RoomEvent struct {
	RoomID    string    `json:"roomId"`
	MessageID uint      `json:"messageId"`
	SenderID  uint      `json:"senderId"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	FileURL   string    `json:"fileUrl,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}
