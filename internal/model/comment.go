package model

import (
	"errors"
	"time"
)

// ContentKind tags how a comment body was authored. Legacy bodies carry
// markdown-like media tokens and are converted to HTML once at write time;
// html bodies arrive as markup and are only sanitized.
type ContentKind string

const (
	ContentKindLegacy ContentKind = "legacy"
	ContentKindHTML   ContentKind = "html"
)

// Comment represents a comment on an article. Replies is transient: it is
// populated by the thread builder on reads and never persisted.
type Comment struct {
	ID        int64       `db:"id" json:"id"`
	ArticleID int64       `db:"article_id" json:"article_id"`
	UserID    int64       `db:"user_id" json:"-"`
	ParentID  *int64      `db:"parent_id" json:"parent_id,omitempty"`
	Body      string      `db:"body" json:"body"`
	BodyKind  ContentKind `db:"body_kind" json:"body_kind"`
	Pinned    bool        `db:"pinned" json:"pinned"`
	Approved  bool        `db:"approved" json:"approved"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`

	// Aggregates recomputed from the votes table on every full read.
	LikeCount    int `db:"like_count" json:"like_count"`
	DislikeCount int `db:"dislike_count" json:"dislike_count"`

	// ViewerVote is the calling voter's current choice ("like"/"dislike"),
	// nil when the viewer has not voted. Joined field.
	ViewerVote *string `db:"viewer_vote" json:"viewer_vote,omitempty"`

	Author  *UserSummary `json:"author,omitempty"` // Joined field
	Replies []*Comment   `json:"replies"`
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Body     string `json:"body"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// UpdateCommentRequest is the request body for editing a comment.
type UpdateCommentRequest struct {
	Body string `json:"body"`
}

// PinRequest is the request body for pinning or unpinning a comment.
type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// ApproveRequest is the request body for approving or unapproving a comment.
type ApproveRequest struct {
	Approved bool `json:"approved"`
}

// ThreadResponse is the threaded comment list for an article.
type ThreadResponse struct {
	Comments []*Comment `json:"comments"`
	Total    int        `json:"total"`
}

// Comment constraints
const (
	MaxCommentLength = 4000
)

// Comment errors
var (
	ErrCommentNotFound  = errors.New("comment not found")
	ErrNotCommentOwner  = errors.New("not the owner of this comment")
	ErrBodyRequired     = errors.New("comment body is required")
	ErrBodyTooLong      = errors.New("comment body too long")
	ErrParentMismatch   = errors.New("parent comment belongs to a different article")
	ErrContentRejected  = errors.New("comment content rejected by safety check")
	ErrModeratorOnly    = errors.New("moderator capability required")
	ErrClassifierFailed = errors.New("content safety check unavailable")
)

// API error codes specific to comments
const (
	CodeContentRejected = "CONTENT_REJECTED"
	CodeAuthRequired    = "AUTH_REQUIRED"
)
