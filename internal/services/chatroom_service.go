package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lingua-go/internal/config"
	"lingua-go/internal/kafka"
	"lingua-go/internal/models"
	"lingua-go/internal/relay"
	"lingua-go/internal/storage"
)

var (
	ErrRoomNotFound     = errors.New("聊天室不存在")
	ErrRoomNameEmpty    = errors.New("聊天室名称不能为空")
	ErrRoomInactive     = errors.New("聊天室已关闭")
	ErrRoomFull         = errors.New("聊天室已满")
	ErrAlreadyInRoom    = errors.New("您已在聊天室中")
	ErrNotInRoom        = errors.New("您不是聊天室成员")
	ErrNotRoomAdmin     = errors.New("只有管理员可以执行此操作")
	ErrTargetNotInRoom  = errors.New("目标用户不是聊天室成员")
	ErrCannotRemoveSelf = errors.New("不能移除自己，请使用离开聊天室")
)

// ChatRoomService 定义了聊天室相关服务的接口。
type ChatRoomService interface {
	CreateRoom(ctx context.Context, creatorID uint, name string) (*models.ChatRoom, error)
	GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error)
	ListRooms(ctx context.Context, limit, offset int) ([]*models.ChatRoom, error)
	JoinRoom(ctx context.Context, userID uint, roomID string) (*models.RoomParticipant, error)
	// LeaveRoom 移除成员；唯一管理员离开前先转移管理员角色，
	// 房间清空后标记为 inactive。整个序列在一个事务中提交。
	LeaveRoom(ctx context.Context, userID uint, roomID string) error
	// RemoveParticipant 管理员强制移除成员。被移除者的管理员标记不做转移。
	RemoveParticipant(ctx context.Context, adminID uint, roomID string, targetUserID uint) error
	// SendMessage 持久化房间消息并通过 Kafka 发布给中继服务。
	SendMessage(ctx context.Context, senderID uint, roomID string, msgType models.RoomMessageType, content, fileURL string) (*models.RoomMessage, error)
	GetMessages(ctx context.Context, roomID string, limit, offset int) ([]*models.RoomMessage, error)
	GetParticipants(ctx context.Context, roomID string) ([]models.RoomParticipant, error)
	// GetActiveRoomIDsForUser 返回用户参与的活跃房间，供中继服务在连接时恢复订阅。
	GetActiveRoomIDsForUser(ctx context.Context, userID uint) ([]string, error)
}

// chatRoomService 是 ChatRoomService 的实现。
type chatRoomService struct {
	db          *gorm.DB
	roomRepo    storage.ChatRoomRepository
	producer    kafka.MessageProducer
	kafkaConfig config.KafkaConfig
	roomConfig  config.ChatRoomConfig
}

// NewChatRoomService 创建一个新的 ChatRoomService 实例。
func NewChatRoomService(
	db *gorm.DB,
	roomRepo storage.ChatRoomRepository,
	producer kafka.MessageProducer,
	kafkaCfg config.KafkaConfig,
	roomCfg config.ChatRoomConfig,
) ChatRoomService {
	return &chatRoomService{
		db:          db,
		roomRepo:    roomRepo,
		producer:    producer,
		kafkaConfig: kafkaCfg,
		roomConfig:  roomCfg,
	}
}

// CreateRoom 创建聊天室，创建者成为唯一的管理员成员。
func (s *chatRoomService) CreateRoom(ctx context.Context, creatorID uint, name string) (*models.ChatRoom, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrRoomNameEmpty
	}

	room := &models.ChatRoom{
		RoomID:          uuid.New().String(),
		Name:            name,
		CreatorID:       creatorID,
		MaxParticipants: s.roomConfig.DefaultMaxParticipants,
		IsActive:        true,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("创建聊天室失败: %w", err)
	}

	creator := &models.RoomParticipant{
		ChatRoomID: room.ID,
		UserID:     creatorID,
		IsAdmin:    true,
		JoinedAt:   time.Now(),
	}
	if err := s.roomRepo.AddParticipant(ctx, creator); err != nil {
		return room, fmt.Errorf("将创建者 %d 添加到聊天室 %s 失败: %w", creatorID, room.RoomID, err)
	}

	return s.GetRoom(ctx, room.RoomID)
}

// GetRoom 获取聊天室详情。
func (s *chatRoomService) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	room, err := s.roomRepo.GetByRoomID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("获取聊天室 %s 失败: %w", roomID, err)
	}
	return room, nil
}

// ListRooms 列出活跃的聊天室。
func (s *chatRoomService) ListRooms(ctx context.Context, limit, offset int) ([]*models.ChatRoom, error) {
	rooms, err := s.roomRepo.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取聊天室列表失败: %w", err)
	}
	return rooms, nil
}

// JoinRoom 用户加入聊天室。
func (s *chatRoomService) JoinRoom(ctx context.Context, userID uint, roomID string) (*models.RoomParticipant, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomInactive
	}
	if room.FindParticipant(userID) != nil {
		return nil, ErrAlreadyInRoom
	}
	if room.MaxParticipants > 0 && len(room.Participants) >= room.MaxParticipants {
		return nil, ErrRoomFull
	}

	participant := &models.RoomParticipant{
		ChatRoomID: room.ID,
		UserID:     userID,
		IsAdmin:    false,
		JoinedAt:   time.Now(),
	}
	if err := s.roomRepo.AddParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("用户 %d 加入聊天室 %s 失败: %w", userID, roomID, err)
	}
	return participant, nil
}

// LeaveRoom 用户离开聊天室。
func (s *chatRoomService) LeaveRoom(ctx context.Context, userID uint, roomID string) error {
	return s.roomRepo.Transaction(ctx, func(txRepo storage.ChatRoomRepository) error {
		room, err := txRepo.GetByRoomID(ctx, roomID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("获取聊天室 %s 失败: %w", roomID, err)
		}

		participant := room.FindParticipant(userID)
		if participant == nil {
			return ErrNotInRoom
		}

		// 唯一管理员离开前先把角色转给任意一个留下的成员
		if participant.IsAdmin && room.AdminCount() == 1 {
			if candidate := room.NextAdminCandidate(userID); candidate != nil {
				candidate.IsAdmin = true
				if err := txRepo.UpdateParticipant(ctx, candidate); err != nil {
					return fmt.Errorf("转移管理员角色失败: %w", err)
				}
				log.Printf("Room %s: admin role transferred from %d to %d", roomID, userID, candidate.UserID)
			}
		}

		if err := txRepo.RemoveParticipant(ctx, room.ID, userID); err != nil {
			return fmt.Errorf("从聊天室 %s 移除用户 %d 失败: %w", roomID, userID, err)
		}

		// 最后一个成员离开后房间关闭，没有重新激活路径
		if len(room.Participants) <= 1 {
			room.IsActive = false
			if err := txRepo.UpdateRoom(ctx, room); err != nil {
				return fmt.Errorf("关闭聊天室 %s 失败: %w", roomID, err)
			}
			log.Printf("Room %s is now inactive (last participant left)", roomID)
		}
		return nil
	})
}

// RemoveParticipant 管理员强制移除成员。
func (s *chatRoomService) RemoveParticipant(ctx context.Context, adminID uint, roomID string, targetUserID uint) error {
	if adminID == targetUserID {
		return ErrCannotRemoveSelf
	}

	return s.roomRepo.Transaction(ctx, func(txRepo storage.ChatRoomRepository) error {
		room, err := txRepo.GetByRoomID(ctx, roomID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("获取聊天室 %s 失败: %w", roomID, err)
		}

		admin := room.FindParticipant(adminID)
		if admin == nil {
			return ErrNotInRoom
		}
		if !admin.IsAdmin {
			return ErrNotRoomAdmin
		}

		target := room.FindParticipant(targetUserID)
		if target == nil {
			return ErrTargetNotInRoom
		}

		if err := txRepo.RemoveParticipant(ctx, room.ID, targetUserID); err != nil {
			return fmt.Errorf("从聊天室 %s 移除用户 %d 失败: %w", roomID, targetUserID, err)
		}
		log.Printf("Room %s: user %d removed by admin %d", roomID, targetUserID, adminID)
		return nil
	})
}

// SendMessage 持久化消息并发布房间事件。
func (s *chatRoomService) SendMessage(ctx context.Context, senderID uint, roomID string, msgType models.RoomMessageType, content, fileURL string) (*models.RoomMessage, error) {
	if strings.TrimSpace(content) == "" && fileURL == "" {
		return nil, ErrEmptyContent
	}
	if msgType == "" {
		msgType = models.TextRoomMessage
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.FindParticipant(senderID) == nil {
		return nil, ErrNotInRoom
	}

	message := &models.RoomMessage{
		ChatRoomID: room.ID,
		SenderID:   senderID,
		Type:       msgType,
		Content:    content,
		FileURL:    fileURL,
		SentAt:     time.Now(),
	}
	if err := s.roomRepo.AddMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("保存房间消息失败: %w", err)
	}

	// 发送者的消息计数
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", senderID).
		UpdateColumn("messages_count", gorm.Expr("messages_count + 1")).Error
	if err != nil {
		log.Printf("Error updating messages_count for user %d: %v", senderID, err)
	}

	// 发布房间事件，由中继服务下发给在线订阅者。失败不回滚消息。
	event := relay.RoomEvent{
		RoomID:    roomID,
		MessageID: message.ID,
		SenderID:  senderID,
		Type:      string(msgType),
		Content:   content,
		FileURL:   fileURL,
		SentAt:    message.SentAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling room event for room %s: %v", roomID, err)
		return message, nil
	}
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.RoomEventsTopic, []byte(roomID), payload); err != nil {
		log.Printf("Error producing room event to topic %s: %v", s.kafkaConfig.RoomEventsTopic, err)
	}

	return message, nil
}

// GetMessages 获取聊天室消息历史。
func (s *chatRoomService) GetMessages(ctx context.Context, roomID string, limit, offset int) ([]*models.RoomMessage, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	messages, err := s.roomRepo.GetMessages(ctx, room.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取聊天室 %s 的消息失败: %w", roomID, err)
	}
	return messages, nil
}

// GetParticipants 获取聊天室成员列表。
func (s *chatRoomService) GetParticipants(ctx context.Context, roomID string) ([]models.RoomParticipant, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Participants, nil
}

// GetActiveRoomIDsForUser 返回用户参与的活跃房间ID。
func (s *chatRoomService) GetActiveRoomIDsForUser(ctx context.Context, userID uint) ([]string, error) {
	roomIDs, err := s.roomRepo.GetActiveRoomIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取用户 %d 的活跃房间失败: %w", userID, err)
	}
	return roomIDs, nil
}
