package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

var (
	ErrPostNotFound    = errors.New("帖子不存在")
	ErrEmptyContent    = errors.New("内容不能为空")
	ErrPostAuthorEmpty = errors.New("帖子必须有作者")
)

// LikeResult 是点赞切换后的结果状态。
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// PostService 定义了动态相关服务的接口。
type PostService interface {
	CreatePost(ctx context.Context, authorID uint, content string) (*models.Post, error)
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error)
	AddComment(ctx context.Context, postID, authorID uint, content string) (*models.PostComment, error)
	// ToggleLike 切换用户对帖子的点赞状态，返回切换后的状态和点赞数。
	ToggleLike(ctx context.Context, postID, userID uint) (*LikeResult, error)
}

// postService 是 PostService 的实现。
type postService struct {
	postRepo storage.PostRepository
	userRepo storage.UserRepository
}

// NewPostService 创建一个新的 PostService 实例。
func NewPostService(postRepo storage.PostRepository, userRepo storage.UserRepository) PostService {
	return &postService{postRepo: postRepo, userRepo: userRepo}
}

// CreatePost 发布一条新动态。
func (s *postService) CreatePost(ctx context.Context, authorID uint, content string) (*models.Post, error) {
	if authorID == 0 {
		return nil, ErrPostAuthorEmpty
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	post := &models.Post{
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("创建帖子失败: %w", err)
	}
	return s.GetPost(ctx, post.ID)
}

// GetPost 获取单条动态及其作者、评论和点赞集合。
func (s *postService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("获取帖子 %d 失败: %w", postID, err)
	}
	return post, nil
}

// ListPosts 按创建时间倒序列出动态。
func (s *postService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("获取动态列表失败: %w", err)
	}
	return posts, nil
}

// AddComment 向动态追加一条评论。
func (s *postService) AddComment(ctx context.Context, postID, authorID uint, content string) (*models.PostComment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	// 确认帖子存在
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	comment := &models.PostComment{
		PostID:   postID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := s.postRepo.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("添加评论失败: %w", err)
	}
	return comment, nil
}

// ToggleLike 切换点赞状态。
func (s *postService) ToggleLike(ctx context.Context, postID, userID uint) (*LikeResult, error) {
	// 确认帖子存在
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	liked, err := s.postRepo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("切换点赞状态失败: %w", err)
	}

	count, err := s.postRepo.CountLikes(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("统计点赞数失败: %w", err)
	}

	return &LikeResult{Liked: liked, LikeCount: count}, nil
}
