package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lingua-go/internal/models"
	"lingua-go/internal/relay"
	"lingua-go/internal/storage"
)

func newChatRoomService(t *testing.T) (ChatRoomService, *gorm.DB, *fakeProducer) {
	t.Helper()
	db := newTestDB(t)
	producer := &fakeProducer{}
	cfg := testConfig()
	svc := NewChatRoomService(db, storage.NewGormChatRoomRepository(db), producer, cfg.Kafka, cfg.ChatRoom)
	return svc, db, producer
}

func TestCreateRoomCreatorIsAdmin(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "日本語練習")
	require.NoError(t, err)
	assert.NotEmpty(t, room.RoomID)
	assert.True(t, room.IsActive)
	assert.Equal(t, testConfig().ChatRoom.DefaultMaxParticipants, room.MaxParticipants)

	require.Len(t, room.Participants, 1)
	assert.Equal(t, alice.ID, room.Participants[0].UserID)
	assert.True(t, room.Participants[0].IsAdmin)

	_, err = svc.CreateRoom(ctx, alice.ID, "  ")
	assert.ErrorIs(t, err, ErrRoomNameEmpty)
}

func TestJoinRoom(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)

	p, err := svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, p.UserID)
	assert.False(t, p.IsAdmin)

	// 重复加入被拒绝
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	_, err = svc.JoinRoom(ctx, bob.ID, "no-such-room")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomFull(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "tiny")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.ChatRoom{}).Where("id = ?", room.ID).Update("max_participants", 2).Error)

	bob := createTestUser(t, db, "bob@example.com")
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)

	carol := createTestUser(t, db, "carol@example.com")
	_, err = svc.JoinRoom(ctx, carol.ID, room.RoomID)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestLeaveRoomTransfersAdmin(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)

	// 唯一管理员离开，角色转移给留下的成员
	require.NoError(t, svc.LeaveRoom(ctx, alice.ID, room.RoomID))

	participants, err := svc.GetParticipants(ctx, room.RoomID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, bob.ID, participants[0].UserID)
	assert.True(t, participants[0].IsAdmin)

	reloaded, err := svc.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
}

func TestLeaveRoomLastParticipantDeactivates(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "solo")
	require.NoError(t, err)
	require.NoError(t, svc.LeaveRoom(ctx, alice.ID, room.RoomID))

	reloaded, err := svc.GetRoom(ctx, room.RoomID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
	assert.Empty(t, reloaded.Participants)

	// 关闭的房间不能再加入
	bob := createTestUser(t, db, "bob@example.com")
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	assert.ErrorIs(t, err, ErrRoomInactive)
}

// 离开或被移除的用户可以再次加入同一个房间。
func TestRejoinAfterLeave(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(ctx, bob.ID, room.RoomID))

	// 主动离开后重新加入
	p, err := svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, p.UserID)
	assert.False(t, p.IsAdmin)

	// 被管理员移除后同样可以重新加入
	require.NoError(t, svc.RemoveParticipant(ctx, alice.ID, room.RoomID, bob.ID))
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)

	participants, err := svc.GetParticipants(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)
}

func TestLeaveRoomNotMember(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.LeaveRoom(ctx, bob.ID, room.RoomID), ErrNotInRoom)
}

func TestRemoveParticipant(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")
	outsider := createTestUser(t, db, "dave@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, bob.ID, room.RoomID)
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, carol.ID, room.RoomID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveParticipant(ctx, alice.ID, room.RoomID, alice.ID), ErrCannotRemoveSelf)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, bob.ID, room.RoomID, carol.ID), ErrNotRoomAdmin)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, outsider.ID, room.RoomID, bob.ID), ErrNotInRoom)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, alice.ID, room.RoomID, outsider.ID), ErrTargetNotInRoom)

	require.NoError(t, svc.RemoveParticipant(ctx, alice.ID, room.RoomID, bob.ID))
	participants, err := svc.GetParticipants(ctx, room.RoomID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	for _, p := range participants {
		assert.NotEqual(t, bob.ID, p.UserID)
	}
}

func TestSendMessagePersistsAndPublishes(t *testing.T) {
	svc, db, producer := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)

	// 非成员不能发消息
	_, err = svc.SendMessage(ctx, bob.ID, room.RoomID, models.TextRoomMessage, "hi", "")
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = svc.SendMessage(ctx, alice.ID, room.RoomID, models.TextRoomMessage, "", "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	msg, err := svc.SendMessage(ctx, alice.ID, room.RoomID, "", "早上好！", "")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, models.TextRoomMessage, msg.Type)

	// 事件以房间ID为分区键发布
	cfg := testConfig()
	events := producer.messagesFor(cfg.Kafka.RoomEventsTopic)
	require.Len(t, events, 1)
	assert.Equal(t, room.RoomID, string(events[0].Key))

	var event relay.RoomEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &event))
	assert.Equal(t, room.RoomID, event.RoomID)
	assert.Equal(t, msg.ID, event.MessageID)
	assert.Equal(t, alice.ID, event.SenderID)
	assert.Equal(t, "早上好！", event.Content)

	// 发送者的消息计数加一
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, alice.ID).Error)
	assert.Equal(t, 1, reloaded.MessagesCount)
}

func TestGetMessagesChronological(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	room, err := svc.CreateRoom(ctx, alice.ID, "room")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.SendMessage(ctx, alice.ID, room.RoomID, models.TextRoomMessage, fmt.Sprintf("msg-%d", i), "")
		require.NoError(t, err)
	}

	messages, err := svc.GetMessages(ctx, room.RoomID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "msg-0", messages[0].Content)
	assert.Equal(t, "msg-2", messages[2].Content)
}

func TestGetActiveRoomIDsForUser(t *testing.T) {
	svc, db, _ := newChatRoomService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	room1, err := svc.CreateRoom(ctx, alice.ID, "room-1")
	require.NoError(t, err)
	room2, err := svc.CreateRoom(ctx, bob.ID, "room-2")
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, alice.ID, room2.RoomID)
	require.NoError(t, err)

	roomIDs, err := svc.GetActiveRoomIDsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{room1.RoomID, room2.RoomID}, roomIDs)

	roomIDs, err = svc.GetActiveRoomIDsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{room2.RoomID}, roomIDs)

	// 离开的房间从重连恢复列表中消失
	require.NoError(t, svc.LeaveRoom(ctx, alice.ID, room2.RoomID))
	roomIDs, err = svc.GetActiveRoomIDsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{room1.RoomID}, roomIDs)
}
