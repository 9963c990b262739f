package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a new comment row and returns it.
func (r *commentRepository) Create(ctx context.Context, articleID, userID int64, body string, kind model.ContentKind, parentID *int64, approved bool) (*model.Comment, error) {
	query := `
		INSERT INTO comments (article_id, user_id, body, body_kind, parent_id, approved)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, article_id, user_id, parent_id, body, body_kind, pinned, approved, created_at
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, articleID, userID, body, kind, parentID, approved)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &comment, nil
}

// GetByID retrieves a single comment without aggregates.
func (r *commentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	query := `
		SELECT id, article_id, user_id, parent_id, body, body_kind, pinned, approved, created_at
		FROM comments
		WHERE id = $1
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, commentID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// ListByArticle returns the flat comment set for an article. Vote counts are
// recomputed from the votes table on every read rather than kept as
// denormalized columns; the viewer's own vote is joined on when the viewer
// is identified.
func (r *commentRepository) ListByArticle(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error) {
	var (
		viewerJoin string
		args       []interface{}
	)
	args = append(args, articleID)

	switch {
	case viewer.UserID != nil:
		viewerJoin = `
			LEFT JOIN votes mv ON mv.comment_id = c.id AND mv.user_id = $2`
		args = append(args, *viewer.UserID)
	case viewer.SessionToken != nil:
		viewerJoin = `
			LEFT JOIN votes mv ON mv.comment_id = c.id AND mv.session_token = $2`
		args = append(args, *viewer.SessionToken)
	default:
		viewerJoin = `
			LEFT JOIN votes mv ON FALSE`
	}

	query := `
		SELECT c.id, c.article_id, c.user_id, c.parent_id, c.body, c.body_kind,
		       c.pinned, c.approved, c.created_at,
		       COALESCE(agg.like_count, 0) AS like_count,
		       COALESCE(agg.dislike_count, 0) AS dislike_count,
		       CASE WHEN mv.id IS NULL THEN NULL
		            WHEN mv.is_like THEN 'like' ELSE 'dislike' END AS viewer_vote,
		       u.id AS "author.id", u.display_name AS "author.display_name",
		       u.avatar_url AS "author.avatar_url", u.gender AS "author.gender"
		FROM comments c
		JOIN users u ON u.id = c.user_id
		LEFT JOIN (
			SELECT comment_id,
			       COUNT(*) FILTER (WHERE is_like)     AS like_count,
			       COUNT(*) FILTER (WHERE NOT is_like) AS dislike_count
			FROM votes
			GROUP BY comment_id
		) agg ON agg.comment_id = c.id` + viewerJoin + `
		WHERE c.article_id = $1`
	if !includePending {
		query += ` AND c.approved = TRUE`
	}
	query += `
		ORDER BY c.created_at ASC, c.id ASC`

	type commentRow struct {
		ID            int64             `db:"id"`
		ArticleID     int64             `db:"article_id"`
		UserID        int64             `db:"user_id"`
		ParentID      *int64            `db:"parent_id"`
		Body          string            `db:"body"`
		BodyKind      model.ContentKind `db:"body_kind"`
		Pinned        bool              `db:"pinned"`
		Approved      bool              `db:"approved"`
		CreatedAt     time.Time         `db:"created_at"`
		LikeCount     int               `db:"like_count"`
		DislikeCount  int               `db:"dislike_count"`
		ViewerVote    *string           `db:"viewer_vote"`
		AuthorID      int64             `db:"author.id"`
		AuthorDisplay string            `db:"author.display_name"`
		AuthorAvatar  *string           `db:"author.avatar_url"`
		AuthorGender  *string           `db:"author.gender"`
	}

	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]*model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = &model.Comment{
			ID:           row.ID,
			ArticleID:    row.ArticleID,
			UserID:       row.UserID,
			ParentID:     row.ParentID,
			Body:         row.Body,
			BodyKind:     row.BodyKind,
			Pinned:       row.Pinned,
			Approved:     row.Approved,
			CreatedAt:    row.CreatedAt,
			LikeCount:    row.LikeCount,
			DislikeCount: row.DislikeCount,
			ViewerVote:   row.ViewerVote,
			Author: &model.UserSummary{
				ID:          row.AuthorID,
				DisplayName: row.AuthorDisplay,
				AvatarURL:   row.AuthorAvatar,
				Gender:      row.AuthorGender,
			},
		}
	}

	return comments, nil
}

// UpdateBody replaces a comment's body. Ownership is checked by the service,
// which also re-renders the body before it gets here.
func (r *commentRepository) UpdateBody(ctx context.Context, commentID int64, body string, kind model.ContentKind) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE comments SET body = $1, body_kind = $2 WHERE id = $3
	`, body, kind, commentID)
	if err != nil {
		return fmt.Errorf("update comment body: %w", err)
	}
	return requireRow(result, model.ErrCommentNotFound)
}

// Delete hard-deletes a comment. parent_id on replies is left in place; the
// thread builder promotes them to roots.
func (r *commentRepository) Delete(ctx context.Context, commentID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireRow(result, model.ErrCommentNotFound)
}

func (r *commentRepository) SetPinned(ctx context.Context, commentID int64, pinned bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE comments SET pinned = $1 WHERE id = $2
	`, pinned, commentID)
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	return requireRow(result, model.ErrCommentNotFound)
}

func (r *commentRepository) SetApproved(ctx context.Context, commentID int64, approved bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE comments SET approved = $1 WHERE id = $2
	`, approved, commentID)
	if err != nil {
		return fmt.Errorf("set approved: %w", err)
	}
	return requireRow(result, model.ErrCommentNotFound)
}

// requireRow maps a zero-row update/delete to the given sentinel.
func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}
