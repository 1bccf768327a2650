package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lingua-go/internal/middleware"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
)

// PostHandler 封装了动态流相关的 HTTP 处理器方法。
type PostHandler struct {
	postService services.PostService
}

// NewPostHandler 创建一个新的 PostHandler 实例。
func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePostPayload 是发布动态的请求体。
type CreatePostPayload struct {
	Content string `json:"content"`
}

// CreateCommentPayload 是发表评论的请求体。
type CreateCommentPayload struct {
	Content string `json:"content"`
}

// ListPosts handles GET /api/v1/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	posts, err := h.postService.ListPosts(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		writeJSONError(w, "获取动态列表失败", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	writeJSONResponse(w, http.StatusOK, posts)
}

// CreatePost handles POST /api/v1/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload CreatePostPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	post, err := h.postService.CreatePost(r.Context(), userID, payload.Content)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error creating post for user %d: %v", userID, err)
			writeJSONError(w, "创建帖子失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, post)
}

// AddComment handles POST /api/v1/posts/{postID}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	postID, err := storage.StrToUint(vars["postID"])
	if err != nil {
		writeJSONError(w, "无效的帖子ID格式", http.StatusBadRequest)
		return
	}

	var payload CreateCommentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	comment, err := h.postService.AddComment(r.Context(), postID, userID, payload.Content)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error adding comment to post %d by user %d: %v", postID, userID, err)
			writeJSONError(w, "添加评论失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, comment)
}

// ToggleLike handles POST /api/v1/posts/{postID}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	postID, err := storage.StrToUint(vars["postID"])
	if err != nil {
		writeJSONError(w, "无效的帖子ID格式", http.StatusBadRequest)
		return
	}

	result, err := h.postService.ToggleLike(r.Context(), postID, userID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error toggling like on post %d by user %d: %v", postID, userID, err)
			writeJSONError(w, "切换点赞状态失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// parsePagination 从查询参数中读取 limit/offset，缺省为 0（不分页）。
func parsePagination(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
