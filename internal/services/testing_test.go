package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

// newTestDB 为每个测试创建一个独立的内存数据库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	return db
}

type sentMessage struct {
	Topic   string
	Key     []byte
	Payload []byte
}

// fakeProducer 在内存中记录发出的 Kafka 消息。
type fakeProducer struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (f *fakeProducer) Close() {}

func (f *fakeProducer) messagesFor(topic string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// fakeBlacklist 是内存版的 Token 黑名单。
type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Time)}
}

func (f *fakeBlacklist) Add(ctx context.Context, jti string, expTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = expTime
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

var _ auth.TokenBlacklist = (*fakeBlacklist)(nil)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecretKey: "test-secret",
			JWTExpiry:    7 * 24 * time.Hour,
			CookieName:   "token",
		},
		Kafka: config.KafkaConfig{
			FriendRequestTopic: "test-friend-requests",
			RoomEventsTopic:    "test-room-events",
		},
		Google: config.GoogleConfig{
			DefaultNative:   "English",
			DefaultLearning: "Spanish",
			VerifyTimeout:   5 * time.Second,
		},
		ChatRoom: config.ChatRoomConfig{
			DefaultMaxParticipants: 10,
		},
	}
}

// createTestUser 直接向数据库写入一个用户。
func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		Email:            email,
		PasswordHash:     hash,
		FullName:         "Test User " + email,
		NativeLanguage:   "English",
		LearningLanguage: "Japanese",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
