package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/model"
)

type articleRepository struct {
	db *sqlx.DB
}

func NewArticleRepository(db *sqlx.DB) ArticleRepository {
	return &articleRepository{db: db}
}

// Exists checks whether an article exists. The article catalog is written by
// the main marketplace application; this service only anchors threads to it.
func (r *articleRepository) Exists(ctx context.Context, articleID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)`, articleID)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// GetAuthorID returns the article author (for comment notifications).
func (r *articleRepository) GetAuthorID(ctx context.Context, articleID int64) (int64, error) {
	var authorID int64
	err := r.db.GetContext(ctx, &authorID, `SELECT user_id FROM articles WHERE id = $1`, articleID)
	if err == sql.ErrNoRows {
		return 0, model.ErrArticleNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get article author: %w", err)
	}
	return authorID, nil
}
