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

// ChatRoomHandler 封装了聊天室相关的 HTTP 处理器方法。
type ChatRoomHandler struct {
	roomService services.ChatRoomService
}

// NewChatRoomHandler 创建一个新的 ChatRoomHandler 实例。
func NewChatRoomHandler(roomService services.ChatRoomService) *ChatRoomHandler {
	return &ChatRoomHandler{roomService: roomService}
}

// CreateRoomPayload 是创建聊天室的请求体。
type CreateRoomPayload struct {
	Name string `json:"name"`
}

// SendRoomMessagePayload 是发送房间消息的请求体。
type SendRoomMessagePayload struct {
	Content string                 `json:"content"`
	Type    models.RoomMessageType `json:"type"`
	FileURL string                 `json:"fileUrl"`
}

// CreateRoom handles POST /api/v1/chat/rooms
func (h *ChatRoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	var payload CreateRoomPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	room, err := h.roomService.CreateRoom(r.Context(), userID, payload.Name)
	if err != nil {
		if errors.Is(err, services.ErrRoomNameEmpty) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error creating room for user %d: %v", userID, err)
			writeJSONError(w, "创建聊天室失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, room)
}

// ListRooms handles GET /api/v1/chat/rooms
func (h *ChatRoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	rooms, err := h.roomService.ListRooms(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Error listing rooms: %v", err)
		writeJSONError(w, "获取聊天室列表失败", http.StatusInternalServerError)
		return
	}
	if rooms == nil {
		rooms = []*models.ChatRoom{}
	}
	writeJSONResponse(w, http.StatusOK, rooms)
}

// GetRoom handles GET /api/v1/chat/rooms/{roomID}
func (h *ChatRoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	room, err := h.roomService.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching room %s: %v", roomID, err)
			writeJSONError(w, "获取聊天室失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, room)
}

// JoinRoom handles POST /api/v1/chat/rooms/{roomID}/join
func (h *ChatRoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomID"]

	participant, err := h.roomService.JoinRoom(r.Context(), userID, roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrRoomInactive) || errors.Is(err, services.ErrRoomFull) || errors.Is(err, services.ErrAlreadyInRoom) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error joining room %s by user %d: %v", roomID, userID, err)
			writeJSONError(w, "加入聊天室失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, participant)
}

// LeaveRoom handles POST /api/v1/chat/rooms/{roomID}/leave
func (h *ChatRoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomID"]

	if err := h.roomService.LeaveRoom(r.Context(), userID, roomID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrNotInRoom) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error leaving room %s by user %d: %v", roomID, userID, err)
			writeJSONError(w, "离开聊天室失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已离开聊天室"})
}

// RemoveParticipant handles DELETE /api/v1/chat/rooms/{roomID}/participants/{userID}
func (h *ChatRoomHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	roomID := vars["roomID"]
	targetUserID, err := storage.StrToUint(vars["userID"])
	if err != nil {
		writeJSONError(w, "无效的用户ID格式", http.StatusBadRequest)
		return
	}

	if err := h.roomService.RemoveParticipant(r.Context(), adminID, roomID, targetUserID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) || errors.Is(err, services.ErrTargetNotInRoom) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrNotInRoom) || errors.Is(err, services.ErrNotRoomAdmin) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else if errors.Is(err, services.ErrCannotRemoveSelf) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error removing user %d from room %s by admin %d: %v", targetUserID, roomID, adminID, err)
			writeJSONError(w, "移除成员失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "成员已移除"})
}

// GetParticipants handles GET /api/v1/chat/rooms/{roomID}/participants
func (h *ChatRoomHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	participants, err := h.roomService.GetParticipants(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching participants of room %s: %v", roomID, err)
			writeJSONError(w, "获取成员列表失败", http.StatusInternalServerError)
		}
		return
	}
	if participants == nil {
		participants = []models.RoomParticipant{}
	}
	writeJSONResponse(w, http.StatusOK, participants)
}

// GetMessages handles GET /api/v1/chat/rooms/{roomID}/messages
func (h *ChatRoomHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]
	limit, offset := parsePagination(r)

	messages, err := h.roomService.GetMessages(r.Context(), roomID, limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			log.Printf("Error fetching messages of room %s: %v", roomID, err)
			writeJSONError(w, "获取消息失败", http.StatusInternalServerError)
		}
		return
	}
	if messages == nil {
		messages = []*models.RoomMessage{}
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/v1/chat/rooms/{roomID}/messages
func (h *ChatRoomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "无法从上下文中获取用户ID", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomID"]

	var payload SendRoomMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	message, err := h.roomService.SendMessage(r.Context(), userID, roomID, payload.Type, payload.Content, payload.FileURL)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else if errors.Is(err, services.ErrNotInRoom) {
			writeJSONError(w, err.Error(), http.StatusForbidden)
		} else if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			log.Printf("Error sending message to room %s by user %d: %v", roomID, userID, err)
			writeJSONError(w, "发送消息失败", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}
