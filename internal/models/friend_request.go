package models

// FriendRequestStatus 定义好友请求的状态
type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
)

// FriendRequest 代表一个好友请求记录
type FriendRequest struct {
	BaseModel
	SenderID    uint                `gorm:"not null;index:idx_friend_request_users" json:"senderId"`    // 请求发送者
	RecipientID uint                `gorm:"not null;index:idx_friend_request_users" json:"recipientId"` // 请求接收者
	Status      FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
}

// FriendRequestWithSender is a DTO pairing a friend request with basic
// information about the user who sent it. Used when listing incoming requests.
type FriendRequestWithSender struct {
	FriendRequest
	Sender *UserBasicInfo `json:"sender"`
}

// FriendRequestWithRecipient is the outgoing-list counterpart.
type FriendRequestWithRecipient struct {
	FriendRequest
	Recipient *UserBasicInfo `json:"recipient"`
}
