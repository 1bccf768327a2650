package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

// recommendedLimit 是推荐伙伴列表的固定上限。
const recommendedLimit = 10

// ProfileUpdateInput 是可更新的个人资料字段；nil 表示该字段不修改。
type ProfileUpdateInput struct {
	FullName         *string `json:"fullName"`
	Bio              *string `json:"bio"`
	Location         *string `json:"location"`
	ProfilePic       *string `json:"profilePic"`
	BackgroundImage  *string `json:"backgroundImage"`
	NativeLanguage   *string `json:"nativeLanguage"`
	LearningLanguage *string `json:"learningLanguage"`
	Hobbies          *string `json:"hobbies"`
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID uint, input ProfileUpdateInput) (*models.User, error)
	// GetRecommendedUsers 返回当前用户尚未加为好友的其他用户，上限10人。
	GetRecommendedUsers(ctx context.Context, userID uint) ([]models.UserBasicInfo, error)
}

// userService 是 UserService 的实现。
type userService struct {
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo storage.UserRepository, friendshipRepo storage.FriendshipRepository) UserService {
	return &userService{userRepo: userRepo, friendshipRepo: friendshipRepo}
}

// GetUserProfile 获取用户的个人资料。
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	// 清理敏感信息，即使它在 JSON 中通常被忽略
	user.PasswordHash = ""
	return user, nil
}

// UpdateUserProfile 更新用户的个人资料，只改动请求中出现的字段。
func (s *userService) UpdateUserProfile(ctx context.Context, userID uint, input ProfileUpdateInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("更新用户资料失败，用户 %d 未找到: %w", userID, err)
	}

	updated := false
	apply := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			updated = true
		}
	}
	apply(&user.FullName, input.FullName)
	apply(&user.Bio, input.Bio)
	apply(&user.Location, input.Location)
	apply(&user.ProfilePic, input.ProfilePic)
	apply(&user.BackgroundImage, input.BackgroundImage)
	apply(&user.NativeLanguage, input.NativeLanguage)
	apply(&user.LearningLanguage, input.LearningLanguage)
	apply(&user.Hobbies, input.Hobbies)

	if !updated {
		user.PasswordHash = ""
		return user, nil
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户 %d 资料失败: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// GetRecommendedUsers 返回推荐的语言伙伴：排除自己和已有好友。
func (s *userService) GetRecommendedUsers(ctx context.Context, userID uint) ([]models.UserBasicInfo, error) {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取用户 %d 的好友列表失败: %w", userID, err)
	}

	users, err := s.userRepo.GetRecommended(ctx, userID, friendIDs, recommendedLimit)
	if err != nil {
		return nil, fmt.Errorf("获取推荐用户失败: %w", err)
	}
	return users, nil
}
