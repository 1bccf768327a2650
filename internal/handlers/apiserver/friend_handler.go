package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"lingua-go/internal/middleware"
	"lingua-go/internal/models"
	"lingua-go/internal/services"
	"lingua-go/internal/storage"
)

// FriendHandler handles HTTP requests related to friend requests and friendships.
type FriendHandler struct {
	friendService services.FriendService
}

// NewFriendHandler creates a new FriendHandler.
func NewFriendHandler(fs services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: fs}
}

// SendFriendRequestPayload defines the expected JSON body for sending a friend request.
type SendFriendRequestPayload struct {
	RecipientID uint `json:"recipientId"`
}

// SendFriendRequest handles POST /api/v1/friend-requests
func (h *FriendHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload SendFriendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if payload.RecipientID == 0 {
		writeJSONError(w, "缺少接收者ID (recipientId)", http.StatusBadRequest)
		return
	}

	err := h.friendService.SendFriendRequest(r.Context(), senderID, payload.RecipientID)
	if err != nil {
		if errors.Is(err, services.ErrFriendRequestSelf) || errors.Is(err, services.ErrRecipientNotFound) || errors.Is(err, services.ErrAlreadyFriends) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else if errors.Is(err, services.ErrFriendRequestExists) {
			writeJSONError(w, err.Error(), http.StatusConflict)
		} else {
			log.Printf("Error sending friend request from %d to %d: %v", senderID, payload.RecipientID, err)
			writeJSONError(w, "发送好友请求失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusAccepted, map[string]string{"message": "好友请求已发送处理"})
}

// AcceptFriendRequest handles POST /api/v1/friend-requests/{requestID}/accept
func (h *FriendHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	recipientUserID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	requestID, err := storage.StrToUint(vars["requestID"])
	if err != nil {
		writeJSONError(w, "无效的好友请求ID格式", http.StatusBadRequest)
		return
	}

	if err := h.friendService.AcceptFriendRequest(r.Context(), recipientUserID, requestID); err != nil {
		if errors.Is(err, services.ErrFriendRequestNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrNotRecipientOfRequest) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else if errors.Is(err, services.ErrRequestNotPending) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error accepting friend request %d by user %d: %v", requestID, recipientUserID, err)
			writeJSONError(w, "处理好友请求失败", http.StatusInternalServerError)
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "好友请求已接受"})
}

// ListIncomingRequests handles GET /api/v1/friend-requests/incoming
func (h *FriendHandler) ListIncomingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	requests, err := h.friendService.ListIncomingRequests(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching incoming requests for user %d: %v", userID, err)
		writeJSONError(w, "获取待处理请求失败", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []*models.FriendRequestWithSender{}
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListOutgoingRequests handles GET /api/v1/friend-requests/outgoing
func (h *FriendHandler) ListOutgoingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	requests, err := h.friendService.ListOutgoingRequests(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching outgoing requests for user %d: %v", userID, err)
		writeJSONError(w, "获取已发送请求失败", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []*models.FriendRequestWithRecipient{}
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListFriends handles GET /api/v1/friends
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	friendsList, err := h.friendService.GetFriendsList(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching friends list for user %d: %v", userID, err)
		writeJSONError(w, "获取好友列表失败", http.StatusInternalServerError)
		return
	}
	if friendsList == nil {
		friendsList = []*models.UserBasicInfo{} // Ensure empty list, not null, for JSON
	}
	writeJSONResponse(w, http.StatusOK, friendsList)
}
