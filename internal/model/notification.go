package model

import (
	"errors"
	"time"
)

// Notification types
const (
	NotificationTypeComment = "comment" // new top-level comment on your article
	NotificationTypeReply   = "reply"   // reply to your comment
	NotificationTypeLike    = "like"    // like on your comment
)

// Notification is a stored notification row written by the worker.
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ActorID   int64     `db:"actor_id" json:"actor_id"`
	Type      string    `db:"type" json:"type"`
	ArticleID int64     `db:"article_id" json:"article_id"`
	CommentID int64     `db:"comment_id" json:"comment_id"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Actor *UserSummary `json:"actor,omitempty"` // Joined field
}

// NotificationListResponse is returned by GET /notifications.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// MarkReadRequest is the request body for POST /notifications/read.
// Empty IDs means mark everything read.
type MarkReadRequest struct {
	IDs []int64 `json:"ids"`
}

var ErrNotificationNotFound = errors.New("notification not found")
