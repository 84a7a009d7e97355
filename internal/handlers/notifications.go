package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/parley-chat/parley/backend/internal/models"
	"github.com/parley-chat/parley/backend/internal/notifications"
)

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	inbox *notifications.Inbox
}

// NewNotificationHandler creates a new NotificationHandler instance.
func NewNotificationHandler(inbox *notifications.Inbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// ListNotifications handles GET /api/notifications
// Returns the inbox newest first, with the unread count.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.InboxResponse{
		Notifications: h.inbox.Notifications(),
		UnreadCount:   h.inbox.UnreadCount(),
	})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "notification ID is required", http.StatusBadRequest)
		return
	}

	if err := h.inbox.MarkRead(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.inbox.MarkAllRead(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
