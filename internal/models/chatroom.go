package models

import "time"

// ChatRoom 代表一个持久化的聊天/视频房间。
// RoomID 是对外暴露的不透明标识（UUID），与实时中继的逻辑房间名一致。
type ChatRoom struct {
	BaseModel
	RoomID          string `gorm:"type:varchar(64);uniqueIndex;not null" json:"roomId"`
	Name            string `gorm:"type:varchar(100);not null" json:"name"`
	CreatorID       uint   `gorm:"not null" json:"creatorId"`
	MaxParticipants int    `gorm:"default:10" json:"maxParticipants"`

	// 房间在参与者清空后标记为 inactive，且没有重新激活路径。
	IsActive bool `gorm:"default:true" json:"isActive"`

	// 关联关系
	Creator      User              `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Participants []RoomParticipant `gorm:"foreignKey:ChatRoomID" json:"participants,omitempty"`
	Messages     []RoomMessage     `gorm:"foreignKey:ChatRoomID" json:"messages,omitempty"`
}

// TableName 指定 ChatRoom 模型的表名。
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// AdminCount 返回当前管理员数量。
func (r *ChatRoom) AdminCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.IsAdmin {
			n++
		}
	}
	return n
}

// FindParticipant 按用户ID查找参与者，未找到返回 nil。
func (r *ChatRoom) FindParticipant(userID uint) *RoomParticipant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// NextAdminCandidate 返回除 leavingUserID 外的任意一个非管理员参与者。
// 唯一管理员离开时用它来转移管理员角色；没有候选人时返回 nil。
func (r *ChatRoom) NextAdminCandidate(leavingUserID uint) *RoomParticipant {
	for i := range r.Participants {
		p := &r.Participants[i]
		if p.UserID != leavingUserID && !p.IsAdmin {
			return p
		}
	}
	return nil
}

// RoomParticipant 将用户链接到房间并记录其管理员标记与加入时间。
// 不使用软删除：离开或被移除后行必须真正消失，
// 否则唯一索引会挡住同一用户的再次加入。
type RoomParticipant struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ChatRoomID uint      `gorm:"not null;uniqueIndex:idx_room_participant_pair" json:"chatRoomId"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_room_participant_pair" json:"userId"`
	IsAdmin    bool      `gorm:"default:false" json:"isAdmin"`
	JoinedAt   time.Time `json:"joinedAt"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 指定 RoomParticipant 模型的表名。
func (RoomParticipant) TableName() string {
	return "room_participants"
}

// RoomMessageType 定义了房间消息的类型。
type RoomMessageType string

const (
	TextRoomMessage RoomMessageType = "text"
	FileRoomMessage RoomMessageType = "file"
)

// RoomMessage 是房间消息日志里的一条记录。
type RoomMessage struct {
	BaseModel
	ChatRoomID uint            `gorm:"not null;index" json:"chatRoomId"`
	SenderID   uint            `gorm:"not null" json:"senderId"`
	Type       RoomMessageType `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	FileURL    string          `gorm:"type:varchar(255)" json:"fileUrl,omitempty"`
	SentAt     time.Time       `gorm:"not null" json:"sentAt"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName 指定 RoomMessage 模型的表名。
func (RoomMessage) TableName() string {
	return "room_messages"
}
