package model

import (
	"errors"
	"time"
)

// Article is the content item a comment thread hangs off. The article
// catalog itself is owned by the main marketplace application; this service
// only needs existence checks and the author for notifications.
type Article struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

var ErrArticleNotFound = errors.New("article not found")
