package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the comment stream
const (
	EventCommentCreated = "comment_created" // top-level comment on an article
	EventCommentReplied = "comment_replied" // reply to an existing comment
	EventCommentVoted   = "comment_voted"   // like cast on a comment
)

// Stream names
const (
	StreamComments = "stream:comments"
)

// Consumer group name for notification workers
const (
	ConsumerGroupNotifications = "notification_workers"
)

// CommentEvent is published after a comment write commits. The worker
// resolves the recipient (article author or parent comment author) from the
// database, so events only carry what happened.
type CommentEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	ArticleID int64 `json:"article_id"`
	CommentID int64 `json:"comment_id"`
	ParentID  int64 `json:"parent_id,omitempty"` // set for replies
	ActorID   int64 `json:"actor_id"`            // authenticated actor; votes by anonymous voters are not published
}

// NewCommentCreatedEvent creates an event for a new top-level comment.
func NewCommentCreatedEvent(articleID, commentID, actorID int64) CommentEvent {
	return CommentEvent{
		Type:      EventCommentCreated,
		Timestamp: time.Now().Unix(),
		ArticleID: articleID,
		CommentID: commentID,
		ActorID:   actorID,
	}
}

// NewCommentRepliedEvent creates an event for a reply.
func NewCommentRepliedEvent(articleID, commentID, parentID, actorID int64) CommentEvent {
	return CommentEvent{
		Type:      EventCommentReplied,
		Timestamp: time.Now().Unix(),
		ArticleID: articleID,
		CommentID: commentID,
		ParentID:  parentID,
		ActorID:   actorID,
	}
}

// NewCommentVotedEvent creates an event for a like landing on a comment.
func NewCommentVotedEvent(articleID, commentID, actorID int64) CommentEvent {
	return CommentEvent{
		Type:      EventCommentVoted,
		Timestamp: time.Now().Unix(),
		ArticleID: articleID,
		CommentID: commentID,
		ActorID:   actorID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so the event is serialized to JSON
// in a "data" field.
func (e CommentEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseCommentEvent parses a CommentEvent from Redis stream message values.
func ParseCommentEvent(values map[string]interface{}) (CommentEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return CommentEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event CommentEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return CommentEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
