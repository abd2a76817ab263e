// File: internal/handlers/notification_handler.go
package handlers

import (
	"net/http"

	"github.com/trash2cash/chatsync/internal/services"
)

type NotificationHandler struct {
	NotificationService *services.NotificationService
}

func NewNotificationHandler(ns *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{NotificationService: ns}
}

// List handles GET /api/notifications/. Only unread items are returned.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	items, err := h.NotificationService.Unread(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// MarkAllRead handles POST /api/notifications/mark-all-read/.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.NotificationService.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "mark all notifications read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// MarkRead handles POST /api/notifications/{id}/mark-read/.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "notification")
	if !ok {
		return
	}
	if err := h.NotificationService.MarkRead(r.Context(), userID, int64(id)); err != nil {
		writeServiceError(w, r, "mark notification read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
