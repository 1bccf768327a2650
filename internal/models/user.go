package models

import "time"

// User 代表系统中的一个语言交换用户。
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	FullName     string `gorm:"type:varchar(100);not null" json:"fullName"`

	ProfilePic      string `gorm:"type:varchar(255)" json:"profilePic,omitempty"`
	BackgroundImage string `gorm:"type:varchar(255)" json:"backgroundImage,omitempty"`
	Location        string `gorm:"type:varchar(100)" json:"location,omitempty"`
	Bio             string `gorm:"type:text" json:"bio,omitempty"`

	// 语言交换的核心资料字段。
	NativeLanguage   string `gorm:"type:varchar(50);not null" json:"nativeLanguage"`
	LearningLanguage string `gorm:"type:varchar(50);not null" json:"learningLanguage"`
	Hobbies          string `gorm:"type:text" json:"hobbies,omitempty"` // 逗号分隔

	IsOnline   bool       `gorm:"default:false" json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`

	// 活动计数器。只做展示用途，不保证与底层表严格一致。
	FriendsCount  int `gorm:"default:0" json:"friendsCount"`
	MessagesCount int `gorm:"default:0" json:"messagesCount"`
	PracticeHours int `gorm:"default:0" json:"practiceHours"`
}

// UserBasicInfo holds minimal public information about a user.
// Used for friend lists, request listings and post author display.
type UserBasicInfo struct {
	ID               uint   `json:"id"`
	FullName         string `json:"fullName"`
	ProfilePic       string `json:"profilePic,omitempty"`
	NativeLanguage   string `json:"nativeLanguage,omitempty"`
	LearningLanguage string `json:"learningLanguage,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
