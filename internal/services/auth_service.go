package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

var (
	ErrMissingFields      = errors.New("缺少必填字段")
	ErrInvalidEmail       = errors.New("邮箱格式无效")
	ErrPasswordTooShort   = errors.New("密码长度至少为6位")
	ErrEmailTaken         = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("无效的邮箱或密码")
	ErrUserNotFound       = errors.New("用户未找到")
)

// 宽松的邮箱格式校验，拒绝明显不合法的输入即可。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignupInput 是注册所需的字段。
type SignupInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"fullName"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
}

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (token string, user *models.User, err error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	// GoogleLogin 用外部签发的 Google ID token 换取本地会话令牌，首次出现的邮箱会自动注册。
	GoogleLogin(ctx context.Context, credential string) (token string, user *models.User, err error)
	// Logout 将令牌的 jti 加入黑名单，直到令牌原本的过期时间。
	Logout(ctx context.Context, claims *auth.Claims) error
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	verifier  *auth.GoogleVerifier
	cfg       config.Config
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, verifier *auth.GoogleVerifier, cfg config.Config) AuthService {
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		verifier:  verifier,
		cfg:       cfg,
	}
}

// Signup 处理用户注册逻辑。
func (s *authService) Signup(ctx context.Context, input SignupInput) (string, *models.User, error) {
	if input.Email == "" || input.Password == "" || input.FullName == "" ||
		input.NativeLanguage == "" || input.LearningLanguage == "" {
		return "", nil, ErrMissingFields
	}
	if len(input.Password) < 6 {
		return "", nil, ErrPasswordTooShort
	}
	if !emailPattern.MatchString(input.Email) {
		return "", nil, ErrInvalidEmail
	}

	// 检查邮箱是否已被注册
	_, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		return "", nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("检查邮箱时出错: %w", err)
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		return "", nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	newUser := &models.User{
		Email:            input.Email,
		PasswordHash:     hashedPassword,
		FullName:         input.FullName,
		NativeLanguage:   input.NativeLanguage,
		LearningLanguage: input.LearningLanguage,
		ProfilePic:       randomAvatarURL(),
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return "", nil, fmt.Errorf("创建用户失败: %w", err)
	}

	token, err := auth.GenerateToken(newUser.ID, newUser.Email, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, newUser, nil
}

// Login 处理用户登录逻辑。
// 用户不存在和密码错误返回同一个错误，避免泄露邮箱是否已注册。
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if email == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	} else if err != nil {
		return "", nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, user, nil
}

// GoogleLogin 验证 Google ID token 并签发本地会话令牌。
func (s *authService) GoogleLogin(ctx context.Context, credential string) (string, *models.User, error) {
	if credential == "" {
		return "", nil, ErrMissingFields
	}

	identity, err := s.verifier.VerifyIDToken(ctx, credential)
	if err != nil {
		return "", nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, identity.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 首次出现的 Google 账号：用随机占位密码创建本地用户
		placeholder, hashErr := auth.HashPassword(uuid.New().String())
		if hashErr != nil {
			return "", nil, fmt.Errorf("密码哈希失败: %w", hashErr)
		}
		user = &models.User{
			Email:            identity.Email,
			PasswordHash:     placeholder,
			FullName:         identity.Name,
			ProfilePic:       identity.Picture,
			NativeLanguage:   s.cfg.Google.DefaultNative,
			LearningLanguage: s.cfg.Google.DefaultLearning,
		}
		if user.ProfilePic == "" {
			user.ProfilePic = randomAvatarURL()
		}
		if createErr := s.userRepo.Create(ctx, user); createErr != nil {
			return "", nil, fmt.Errorf("创建用户失败: %w", createErr)
		}
	} else if err != nil {
		return "", nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, user, nil
}

// Logout 吊销当前令牌。
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	} else {
		expiry = time.Now().Add(s.cfg.Auth.JWTExpiry)
	}
	if err := s.blacklist.Add(ctx, claims.ID, expiry); err != nil {
		return fmt.Errorf("吊销令牌失败: %w", err)
	}
	return nil
}

// randomAvatarURL 为新用户分配一个占位头像。
func randomAvatarURL() string {
	idx := rand.Intn(100) + 1
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%d.png", idx)
}
