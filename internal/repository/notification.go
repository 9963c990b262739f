package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"templora_comments/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a notification row. Written by the queue worker, never by
// request handlers directly.
func (r *notificationRepository) Create(ctx context.Context, userID, actorID int64, notifType string, articleID, commentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, actor_id, type, article_id, comment_id)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, actorID, notifType, articleID, commentID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListForUser returns the most recent notifications with the actor joined,
// plus the total unread count.
func (r *notificationRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error) {
	type notifRow struct {
		ID           int64     `db:"id"`
		UserID       int64     `db:"user_id"`
		ActorID      int64     `db:"actor_id"`
		Type         string    `db:"type"`
		ArticleID    int64     `db:"article_id"`
		CommentID    int64     `db:"comment_id"`
		Read         bool      `db:"read"`
		CreatedAt    time.Time `db:"created_at"`
		ActorDisplay string    `db:"actor.display_name"`
		ActorAvatar  *string   `db:"actor.avatar_url"`
		ActorGender  *string   `db:"actor.gender"`
	}

	var rows []notifRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT n.id, n.user_id, n.actor_id, n.type, n.article_id, n.comment_id, n.read, n.created_at,
		       u.display_name AS "actor.display_name",
		       u.avatar_url   AS "actor.avatar_url",
		       u.gender       AS "actor.gender"
		FROM notifications n
		JOIN users u ON u.id = n.actor_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = model.Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			ActorID:   row.ActorID,
			Type:      row.Type,
			ArticleID: row.ArticleID,
			CommentID: row.CommentID,
			Read:      row.Read,
			CreatedAt: row.CreatedAt,
			Actor: &model.UserSummary{
				ID:          row.ActorID,
				DisplayName: row.ActorDisplay,
				AvatarURL:   row.ActorAvatar,
				Gender:      row.ActorGender,
			},
		}
	}

	var unread int
	err = r.db.GetContext(ctx, &unread, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count unread: %w", err)
	}

	return notifications, unread, nil
}

// MarkRead marks the given notifications read; rows belonging to other users
// are untouched.
func (r *notificationRepository) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE
	`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
