package models

import "time"

// Post 代表动态流中的一条帖子。
type Post struct {
	BaseModel
	AuthorID uint   `gorm:"not null;index" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`

	// 关联关系
	Author   User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []PostComment `gorm:"foreignKey:PostID" json:"comments"`
	Likes    []PostLike    `gorm:"foreignKey:PostID" json:"likes"`
}

// TableName 指定 Post 模型的表名。
func (Post) TableName() string {
	return "posts"
}

// PostComment 是帖子的内嵌评论，按创建时间排序。
type PostComment struct {
	BaseModel
	PostID   uint   `gorm:"not null;index" json:"postId"`
	AuthorID uint   `gorm:"not null" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`

	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定 PostComment 模型的表名。
func (PostComment) TableName() string {
	return "post_comments"
}

// PostLike 是点赞集合的一行：存在即点赞，不是计数器。
// (post_id, user_id) 唯一，确保同一用户对同一帖子至多一行。
type PostLike struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_like_pair" json:"postId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_like_pair" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 PostLike 模型的表名。
func (PostLike) TableName() string {
	return "post_likes"
}
