package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"templora_comments/internal/httputil"
	"templora_comments/internal/model"
	"templora_comments/internal/service"
	"templora_comments/internal/transport/http/middleware"
)

type NotificationHandler struct {
	notifService *service.NotificationService
}

func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
	}
}

// List handles GET /notifications
// Returns recent notifications plus the unread count for badge display.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := 0 // service applies the default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	notifications, err := h.notifService.List(r.Context(), user.ID, limit)
	if err != nil {
		log.Printf("[ERROR] List notifications: user=%d err=%v", user.ID, err)
		httputil.WriteInternalError(w, "Failed to get notifications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}

// MarkRead handles POST /notifications/read
// Marks the given notifications as read, or all of them when no IDs are sent.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.notifService.MarkRead(r.Context(), user.ID, req.IDs); err != nil {
		log.Printf("[ERROR] Mark notifications read: user=%d err=%v", user.ID, err)
		httputil.WriteInternalError(w, "Failed to mark notifications as read")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Notifications marked as read",
	})
}
