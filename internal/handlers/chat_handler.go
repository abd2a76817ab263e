// File: internal/handlers/chat_handler.go
package handlers

import (
	"net/http"

	"github.com/trash2cash/chatsync/internal/services"
)

type ChatHandler struct {
	ChatService *services.ChatService
}

func NewChatHandler(cs *services.ChatService) *ChatHandler {
	return &ChatHandler{ChatService: cs}
}

// MyChatrooms handles GET /api/chat/my-chatrooms/.
func (h *ChatHandler) MyChatrooms(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	rooms, err := h.ChatService.MyChatrooms(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list chatrooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetMessages handles GET /api/chat/messages/{id}/.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "chatroom")
	if !ok {
		return
	}
	messages, err := h.ChatService.Messages(r.Context(), userID, roomID)
	if err != nil {
		writeServiceError(w, r, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage handles POST /api/chat/send/.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ChatroomID flexID `json:"chatroom_id"`
		Content    string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChatroomID == 0 {
		writeError(w, "chatroom_id is required", http.StatusBadRequest)
		return
	}

	msg, err := h.ChatService.Send(r.Context(), userID, uint(req.ChatroomID), req.Content)
	if err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": msg.ID, "content": msg.Content})
}

// SetTyping handles POST /api/chat/typing/.
func (h *ChatHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ChatroomID flexID `json:"chatroom_id"`
		IsTyping   bool   `json:"is_typing"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChatroomID == 0 {
		writeError(w, "Chatroom ID required", http.StatusBadRequest)
		return
	}
	if err := h.ChatService.SetTyping(r.Context(), userID, uint(req.ChatroomID), req.IsTyping); err != nil {
		writeServiceError(w, r, "set typing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GetTyping handles GET /api/chat/typing/{id}/.
func (h *ChatHandler) GetTyping(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	roomID, ok := pathID(w, r, "chatroom")
	if !ok {
		return
	}
	users, err := h.ChatService.Typing(r.Context(), userID, roomID)
	if err != nil {
		writeServiceError(w, r, "get typing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"typing_users": users})
}

// MarkAsRead handles POST /api/chat/mark-as-read/.
func (h *ChatHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		ChatroomID flexID `json:"chatroom_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChatroomID == 0 {
		writeError(w, "chatroom_id is required", http.StatusBadRequest)
		return
	}
	marked, err := h.ChatService.MarkAsRead(r.Context(), userID, uint(req.ChatroomID))
	if err != nil {
		writeServiceError(w, r, "mark as read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "marked": marked})
}

// UnreadCounts handles GET /api/chat/chatroom-unread-counts/.
func (h *ChatHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	counts, err := h.ChatService.UnreadCounts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "unread counts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"unread_counts": counts})
}

// GetOrCreateChatroom handles POST /api/chat/get-or-create-chatroom/.
func (h *ChatHandler) GetOrCreateChatroom(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID flexID `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	roomID, err := h.ChatService.GetOrCreateChatroom(r.Context(), userID, uint(req.UserID))
	if err != nil {
		writeServiceError(w, r, "get or create chatroom", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint{"chatroom_id": roomID})
}
