package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"gorm.io/gorm"

	"lingua-go/internal/config"
	"lingua-go/internal/kafka"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

var (
	ErrFriendRequestSelf     = errors.New("不能添加自己为好友")
	ErrFriendRequestExists   = errors.New("已存在待处理的好友请求")
	ErrRecipientNotFound     = errors.New("接收用户不存在")
	ErrAlreadyFriends        = errors.New("你们已经是好友了")
	ErrFriendRequestNotFound = errors.New("好友请求不存在")
	ErrNotRecipientOfRequest = errors.New("您不是此好友请求的接收者")
	ErrRequestNotPending     = errors.New("该好友请求不是待处理状态")
)

// FriendRequestEvent defines the structure for Kafka messages related to friend requests.
type FriendRequestEvent struct {
	SenderUserID    uint      `json:"senderUserId"`
	RecipientUserID uint      `json:"recipientUserId"`
	Timestamp       time.Time `json:"timestamp"`
}

// FriendService defines the interface for friend request and friendship operations.
type FriendService interface {
	SendFriendRequest(ctx context.Context, senderID, recipientID uint) error
	ProcessFriendRequest(ctx context.Context, kafkaMsg *confluentKafka.Message) error
	AcceptFriendRequest(ctx context.Context, recipientUserID uint, requestID uint) error
	ListIncomingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithSender, error)
	ListOutgoingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithRecipient, error)
	GetFriendsList(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
}

type friendService struct {
	db             *gorm.DB // for transaction support
	userRepo       storage.UserRepository
	requestRepo    storage.FriendRequestRepository
	friendshipRepo storage.FriendshipRepository
	producer       kafka.MessageProducer
	kafkaConfig    config.KafkaConfig
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	requestRepo storage.FriendRequestRepository,
	friendshipRepo storage.FriendshipRepository,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) FriendService {
	return &friendService{
		db:             db,
		userRepo:       userRepo,
		requestRepo:    requestRepo,
		friendshipRepo: friendshipRepo,
		producer:       producer,
		kafkaConfig:    cfg,
	}
}

// SendFriendRequest validates the request and publishes an event to Kafka.
func (s *friendService) SendFriendRequest(ctx context.Context, senderID, recipientID uint) error {
	if senderID == recipientID {
		return ErrFriendRequestSelf
	}

	// 1. Check if recipient exists
	_, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("检查接收用户时出错: %w", err)
	}

	// 2. Check if users are already friends
	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("检查好友关系时出错: %w", err)
	}
	if areFriends {
		return ErrAlreadyFriends
	}

	// 3. Check if a pending request already exists (in either direction)
	existingRequest, err := s.requestRepo.FindPendingBetween(ctx, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("检查现有请求时出错: %w", err)
	}
	if existingRequest != nil {
		return ErrFriendRequestExists
	}

	// 4. Publish the event; the consumer persists the pending record.
	event := FriendRequestEvent{
		SenderUserID:    senderID,
		RecipientUserID: recipientID,
		Timestamp:       time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化好友请求事件失败: %w", err)
	}

	topic := s.kafkaConfig.FriendRequestTopic
	key := []byte(fmt.Sprintf("%d-%d", senderID, recipientID))

	if err := s.producer.SendMessage(ctx, topic, key, payload); err != nil {
		return fmt.Errorf("发送好友请求到处理队列失败: %w", err)
	}

	log.Printf("Friend request event published to topic %s for %d -> %d", topic, senderID, recipientID)
	return nil
}

// ProcessFriendRequest handles incoming friend request events from Kafka.
// Checks are repeated here because the topic may replay events.
func (s *friendService) ProcessFriendRequest(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var event FriendRequestEvent
	if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
		log.Printf("Error unmarshalling friend request event from Kafka: %v, value: %s", err, string(kafkaMsg.Value))
		return nil // commit offset for bad message
	}

	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, event.SenderUserID, event.RecipientUserID)
	if err != nil {
		return err // retryable
	}
	if areFriends {
		log.Printf("Users %d and %d are already friends, skipping friend request creation.", event.SenderUserID, event.RecipientUserID)
		return nil
	}

	existing, err := s.requestRepo.FindPendingBetween(ctx, event.SenderUserID, event.RecipientUserID)
	if err != nil {
		return err // retryable
	}
	if existing != nil {
		log.Printf("Friend request already exists (%d -> %d), skipping creation.", event.SenderUserID, event.RecipientUserID)
		return nil
	}

	request := models.FriendRequest{
		SenderID:    event.SenderUserID,
		RecipientID: event.RecipientUserID,
		Status:      models.FriendRequestStatusPending,
	}
	if err := s.requestRepo.Create(ctx, &request); err != nil {
		return err // retryable
	}

	log.Printf("Friend request from %d to %d saved with ID %d", event.SenderUserID, event.RecipientUserID, request.ID)
	return nil
}

// AcceptFriendRequest 接受好友请求：状态翻转与好友关系写入在同一个事务中提交。
func (s *friendService) AcceptFriendRequest(ctx context.Context, recipientUserID uint, requestID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRequestRepo := storage.NewGormFriendRequestRepository(tx)
		txFriendshipRepo := storage.NewGormFriendshipRepository(tx)

		request, err := txRequestRepo.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFriendRequestNotFound
			}
			return fmt.Errorf("检索好友请求失败: %w", err)
		}

		if request.RecipientID != recipientUserID {
			return ErrNotRecipientOfRequest
		}
		if request.Status != models.FriendRequestStatusPending {
			return ErrRequestNotPending
		}

		if err := txRequestRepo.UpdateStatus(ctx, requestID, models.FriendRequestStatusAccepted); err != nil {
			return fmt.Errorf("更新好友请求状态失败: %w", err)
		}

		friendship := &models.Friendship{
			UserID1: request.SenderID,
			UserID2: request.RecipientID,
		}
		friendship.EnsureCanonicalOrder()
		if err := txFriendshipRepo.Create(ctx, friendship); err != nil {
			return fmt.Errorf("创建好友关系失败: %w", err)
		}

		// 同步双方的好友计数
		err = tx.Model(&models.User{}).
			Where("id IN ?", []uint{request.SenderID, request.RecipientID}).
			UpdateColumn("friends_count", gorm.Expr("friends_count + 1")).Error
		if err != nil {
			return fmt.Errorf("更新好友计数失败: %w", err)
		}

		log.Printf("Friendship created between %d and %d from request %d", request.SenderID, request.RecipientID, requestID)
		return nil
	})
}

// ListIncomingRequests retrieves pending requests addressed to the user,
// enriched with sender basic info.
func (s *friendService) ListIncomingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithSender, error) {
	pending, err := s.requestRepo.GetPendingForRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取待处理好友请求失败: %w", err)
	}

	result := make([]*models.FriendRequestWithSender, 0, len(pending))
	for _, req := range pending {
		sender, err := s.userRepo.GetBasicInfoByID(ctx, req.SenderID)
		if err != nil {
			log.Printf("Error fetching sender info for user %d (request %d): %v", req.SenderID, req.ID, err)
			continue
		}
		result = append(result, &models.FriendRequestWithSender{
			FriendRequest: req,
			Sender:        sender,
		})
	}
	return result, nil
}

// ListOutgoingRequests retrieves pending requests the user sent,
// enriched with recipient basic info.
func (s *friendService) ListOutgoingRequests(ctx context.Context, userID uint) ([]*models.FriendRequestWithRecipient, error) {
	pending, err := s.requestRepo.GetPendingFromSender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取已发送好友请求失败: %w", err)
	}

	result := make([]*models.FriendRequestWithRecipient, 0, len(pending))
	for _, req := range pending {
		recipient, err := s.userRepo.GetBasicInfoByID(ctx, req.RecipientID)
		if err != nil {
			log.Printf("Error fetching recipient info for user %d (request %d): %v", req.RecipientID, req.ID, err)
			continue
		}
		result = append(result, &models.FriendRequestWithRecipient{
			FriendRequest: req,
			Recipient:     recipient,
		})
	}
	return result, nil
}

// GetFriendsList retrieves the basic info for all friends of the given user.
func (s *friendService) GetFriendsList(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	if len(friendIDs) == 0 {
		return []*models.UserBasicInfo{}, nil
	}

	friendsInfo, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("获取好友信息失败: %w", err)
	}
	return friendsInfo, nil
}
