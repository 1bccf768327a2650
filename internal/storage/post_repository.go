package storage

import (
	"context"

	"gorm.io/gorm"

	"lingua-go/internal/models"
)

// PostRepository 定义了帖子数据操作的接口。
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// List returns posts newest first with author, comments and like set preloaded.
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	AddComment(ctx context.Context, comment *models.PostComment) error
	// ToggleLike flips membership of userID in the post's like set inside one
	// transaction. Returns true when the call resulted in a like, false on unlike.
	ToggleLike(ctx context.Context, postID, userID uint) (bool, error)
	CountLikes(ctx context.Context, postID uint) (int64, error)
}

// gormPostRepository 使用 GORM 实现 PostRepository。
type gormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository 创建一个新的基于 GORM 的 PostRepository。
func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

// Create 创建一条新帖子。
func (r *gormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// GetByID 通过ID检索帖子，预加载作者、评论与点赞集合。
func (r *gormPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("post_comments.created_at ASC")
		}).
		Preload("Comments.Author").
		Preload("Likes").
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// List 按创建时间倒序检索帖子。
func (r *gormPostRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	query := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("post_comments.created_at ASC")
		}).
		Preload("Comments.Author").
		Preload("Likes").
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&posts).Error
	return posts, err
}

// AddComment 向帖子追加一条评论。
func (r *gormPostRepository) AddComment(ctx context.Context, comment *models.PostComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ToggleLike 在一个事务中完成"存在则删、不存在则增"，
// 避免读后写竞争导致同一用户出现两行点赞。
func (r *gormPostRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	liked := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			// 取消点赞
			return nil
		}
		liked = true
		return tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

// CountLikes 返回帖子的点赞数量。
func (r *gormPostRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}
