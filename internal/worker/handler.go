package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"templora_comments/internal/model"
	"templora_comments/internal/queue"
)

// CommentProvider resolves the author of a comment.
// This abstracts the repository layer so workers don't depend on DB directly.
type CommentProvider interface {
	GetByID(ctx context.Context, commentID int64) (*model.Comment, error)
}

// ArticleProvider resolves the author of an article.
type ArticleProvider interface {
	GetAuthorID(ctx context.Context, articleID int64) (int64, error)
}

// NotificationCreator persists a notification row.
type NotificationCreator interface {
	Create(ctx context.Context, userID, actorID int64, notifType string, articleID, commentID int64) error
}

// Handler turns comment events into stored notifications: article authors
// hear about new top-level comments, comment authors about replies and likes.
type Handler struct {
	comments      CommentProvider
	articles      ArticleProvider
	notifications NotificationCreator
}

// NewHandler creates a new event handler.
func NewHandler(comments CommentProvider, articles ArticleProvider, notifications NotificationCreator) *Handler {
	return &Handler{
		comments:      comments,
		articles:      articles,
		notifications: notifications,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.CommentEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventCommentCreated:
		err = h.handleCommentCreated(ctx, event)
	case queue.EventCommentReplied:
		err = h.handleCommentReplied(ctx, event)
	case queue.EventCommentVoted:
		err = h.handleCommentVoted(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleCommentCreated notifies the article author.
func (h *Handler) handleCommentCreated(ctx context.Context, event queue.CommentEvent) error {
	authorID, err := h.articles.GetAuthorID(ctx, event.ArticleID)
	if err != nil {
		return fmt.Errorf("get article author: %w", err)
	}
	if authorID == event.ActorID {
		return nil
	}
	return h.notifications.Create(ctx, authorID, event.ActorID, model.NotificationTypeComment, event.ArticleID, event.CommentID)
}

// handleCommentReplied notifies the parent comment's author.
func (h *Handler) handleCommentReplied(ctx context.Context, event queue.CommentEvent) error {
	parent, err := h.comments.GetByID(ctx, event.ParentID)
	if err != nil {
		// Parent deleted between publish and consume: nothing to notify.
		if errors.Is(err, model.ErrCommentNotFound) {
			return nil
		}
		return fmt.Errorf("get parent comment: %w", err)
	}
	if parent.UserID == event.ActorID {
		return nil
	}
	return h.notifications.Create(ctx, parent.UserID, event.ActorID, model.NotificationTypeReply, event.ArticleID, event.CommentID)
}

// handleCommentVoted notifies the liked comment's author.
func (h *Handler) handleCommentVoted(ctx context.Context, event queue.CommentEvent) error {
	comment, err := h.comments.GetByID(ctx, event.CommentID)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			return nil
		}
		return fmt.Errorf("get comment: %w", err)
	}
	if comment.UserID == event.ActorID {
		return nil
	}
	return h.notifications.Create(ctx, comment.UserID, event.ActorID, model.NotificationTypeLike, event.ArticleID, event.CommentID)
}
