package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lingua-go/internal/storage"
)

func newPostService(t *testing.T) (PostService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewPostService(storage.NewGormPostRepository(db), storage.NewGormUserRepository(db))
	return svc, db
}

func TestCreatePost(t *testing.T) {
	svc, db := newPostService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	post, err := svc.CreatePost(ctx, alice.ID, "今天学了三个新单词！")
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
	assert.Equal(t, alice.ID, post.AuthorID)
	// 返回的帖子已预加载作者
	require.NotNil(t, post.Author)
	assert.Equal(t, alice.FullName, post.Author.FullName)

	_, err = svc.CreatePost(ctx, alice.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = svc.CreatePost(ctx, 0, "orphan")
	assert.ErrorIs(t, err, ErrPostAuthorEmpty)
}

func TestListPostsNewestFirst(t *testing.T) {
	svc, db := newPostService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")

	first, err := svc.CreatePost(ctx, alice.ID, "first")
	require.NoError(t, err)
	second, err := svc.CreatePost(ctx, alice.ID, "second")
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)
}

func TestAddComment(t *testing.T) {
	svc, db := newPostService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	post, err := svc.CreatePost(ctx, alice.ID, "练习日语口语的人在哪里？")
	require.NoError(t, err)

	comment, err := svc.AddComment(ctx, post.ID, bob.ID, "我也在学！")
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, post.ID, comment.PostID)

	_, err = svc.AddComment(ctx, 9999, bob.ID, "hello")
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = svc.AddComment(ctx, post.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrEmptyContent)

	reloaded, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Comments, 1)
	assert.Equal(t, "我也在学！", reloaded.Comments[0].Content)
}

// 连续两次切换回到未点赞状态。
func TestToggleLikeRoundTrip(t *testing.T) {
	svc, db := newPostService(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	post, err := svc.CreatePost(ctx, alice.ID, "like me")
	require.NoError(t, err)

	res, err := svc.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.EqualValues(t, 1, res.LikeCount)

	res, err = svc.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.EqualValues(t, 2, res.LikeCount)

	res, err = svc.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.EqualValues(t, 1, res.LikeCount)

	_, err = svc.ToggleLike(ctx, 9999, bob.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
