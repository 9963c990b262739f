package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateAvatar(ctx context.Context, userID int64, url, key string) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type ArticleRepository interface {
	Exists(ctx context.Context, articleID int64) (bool, error)
	GetAuthorID(ctx context.Context, articleID int64) (int64, error)
}

type CommentRepository interface {
	// Create inserts a comment. The body is already rendered/sanitized.
	Create(ctx context.Context, articleID, userID int64, body string, kind model.ContentKind, parentID *int64, approved bool) (*model.Comment, error)
	GetByID(ctx context.Context, commentID int64) (*model.Comment, error)
	// ListByArticle returns the flat comment set for an article with author
	// join, vote aggregates, and the viewer's own vote. includePending is the
	// moderator view; non-moderators only ever see approved rows.
	ListByArticle(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error)
	UpdateBody(ctx context.Context, commentID int64, body string, kind model.ContentKind) error
	// Delete hard-deletes a single row. Replies survive and surface as roots.
	Delete(ctx context.Context, commentID int64) error
	SetPinned(ctx context.Context, commentID int64, pinned bool) error
	SetApproved(ctx context.Context, commentID int64, approved bool) error
}

type VoteRepository interface {
	// GetByVoter returns the voter's row for a comment, or nil when none.
	GetByVoter(ctx context.Context, commentID int64, voter model.Voter) (*model.Vote, error)
	// UpdateChoice flips is_like on the existing row, reporting rows affected.
	UpdateChoice(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (int64, error)
	// Insert adds a row. A unique-violation (concurrent first-vote race)
	// reports conflict=true with a nil error: the vote already exists.
	Insert(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (conflict bool, err error)
	// DeleteByVoter removes the voter's row; absence is not an error.
	DeleteByVoter(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter) error
	// Counts recomputes the aggregates from the votes table.
	Counts(ctx context.Context, commentID int64) (likes, dislikes int, err error)
}

type NotificationRepository interface {
	Create(ctx context.Context, userID, actorID int64, notifType string, articleID, commentID int64) error
	// ListForUser returns recent notifications plus the unread count.
	ListForUser(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) error
	MarkAllRead(ctx context.Context, userID int64) error
}
