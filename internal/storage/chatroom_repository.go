package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lingua-go/internal/models"
)

// ChatRoomRepository 定义了聊天室数据操作的接口。
type ChatRoomRepository interface {
	Create(ctx context.Context, room *models.ChatRoom) error
	GetByRoomID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.ChatRoom, error)
	UpdateRoom(ctx context.Context, room *models.ChatRoom) error
	AddParticipant(ctx context.Context, participant *models.RoomParticipant) error
	RemoveParticipant(ctx context.Context, chatRoomID, userID uint) error
	UpdateParticipant(ctx context.Context, participant *models.RoomParticipant) error
	AddMessage(ctx context.Context, message *models.RoomMessage) error
	GetMessages(ctx context.Context, chatRoomID uint, limit, offset int) ([]*models.RoomMessage, error)
	// GetActiveRoomIDsForUser returns the RoomIDs of active rooms the user
	// participates in. Used to restore room membership on reconnect.
	GetActiveRoomIDsForUser(ctx context.Context, userID uint) ([]string, error)
	// Transaction runs fn inside a database transaction. The repository passed
	// to fn shares the transaction handle, so leave/promote sequences commit
	// atomically.
	Transaction(ctx context.Context, fn func(txRepo ChatRoomRepository) error) error
}

// gormChatRoomRepository 使用 GORM 实现 ChatRoomRepository。
type gormChatRoomRepository struct {
	db *gorm.DB
}

// NewGormChatRoomRepository 创建一个新的基于 GORM 的 ChatRoomRepository。
func NewGormChatRoomRepository(db *gorm.DB) ChatRoomRepository {
	return &gormChatRoomRepository{db: db}
}

// Create 创建一个新聊天室。
func (r *gormChatRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// GetByRoomID 通过对外的 RoomID 检索聊天室，预加载成员及其用户信息。
func (r *gormChatRoomRepository) GetByRoomID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("room_participants.joined_at ASC")
		}).
		Preload("Participants.User").
		Where("room_id = ?", roomID).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListActive 检索仍处于活跃状态的聊天室。
func (r *gormChatRoomRepository) ListActive(ctx context.Context, limit, offset int) ([]*models.ChatRoom, error) {
	var rooms []*models.ChatRoom
	query := r.db.WithContext(ctx).
		Preload("Participants").
		Where("is_active = ?", true).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&rooms).Error
	return rooms, err
}

// UpdateRoom 保存聊天室字段的变更。
func (r *gormChatRoomRepository) UpdateRoom(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Save(room).Error
}

// AddParticipant 向聊天室添加成员。
func (r *gormChatRoomRepository) AddParticipant(ctx context.Context, participant *models.RoomParticipant) error {
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(participant).Error
}

// RemoveParticipant 从聊天室移除成员。
func (r *gormChatRoomRepository) RemoveParticipant(ctx context.Context, chatRoomID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("chat_room_id = ? AND user_id = ?", chatRoomID, userID).
		Delete(&models.RoomParticipant{}).Error
}

// UpdateParticipant 保存成员字段的变更（如管理员标记）。
func (r *gormChatRoomRepository) UpdateParticipant(ctx context.Context, participant *models.RoomParticipant) error {
	return r.db.WithContext(ctx).Save(participant).Error
}

// AddMessage 向聊天室追加一条消息。
func (r *gormChatRoomRepository) AddMessage(ctx context.Context, message *models.RoomMessage) error {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

// GetMessages 按发送时间正序检索聊天室消息。
func (r *gormChatRoomRepository) GetMessages(ctx context.Context, chatRoomID uint, limit, offset int) ([]*models.RoomMessage, error) {
	var messages []*models.RoomMessage
	query := r.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_room_id = ?", chatRoomID).
		Order("sent_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&messages).Error
	return messages, err
}

// GetActiveRoomIDsForUser 返回用户参与的所有活跃聊天室的 RoomID。
func (r *gormChatRoomRepository) GetActiveRoomIDsForUser(ctx context.Context, userID uint) ([]string, error) {
	var roomIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Joins("JOIN room_participants ON room_participants.chat_room_id = chat_rooms.id").
		Where("room_participants.user_id = ? AND chat_rooms.is_active = ?", userID, true).
		Pluck("chat_rooms.room_id", &roomIDs).Error
	return roomIDs, err
}

// Transaction 在数据库事务中执行 fn。
func (r *gormChatRoomRepository) Transaction(ctx context.Context, fn func(txRepo ChatRoomRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormChatRoomRepository{db: tx})
	})
}
