package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"templora_comments/internal/model"
)

type voteRepository struct {
	db *sqlx.DB
}

func NewVoteRepository(db *sqlx.DB) VoteRepository {
	return &voteRepository{db: db}
}

// voterFilter returns the SQL fragment and argument selecting the voter's
// identity column. Exactly one of the two columns is populated per row; the
// uniqueness constraint is split across two partial unique indexes
// ((comment_id, user_id) WHERE user_id IS NOT NULL, and likewise for
// session_token), which is why ON CONFLICT cannot target it directly and the
// service runs the update-then-insert protocol instead.
func voterFilter(voter model.Voter, argPos int) (string, interface{}, error) {
	switch {
	case voter.UserID != nil:
		return fmt.Sprintf("user_id = $%d", argPos), *voter.UserID, nil
	case voter.SessionToken != nil:
		return fmt.Sprintf("session_token = $%d", argPos), *voter.SessionToken, nil
	default:
		return "", nil, model.ErrVoterUnidentified
	}
}

// GetByVoter returns the voter's vote row for a comment, or nil when the
// voter has not voted.
func (r *voteRepository) GetByVoter(ctx context.Context, commentID int64, voter model.Voter) (*model.Vote, error) {
	filter, arg, err := voterFilter(voter, 2)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, comment_id, user_id, session_token, is_like, created_at
		FROM votes
		WHERE comment_id = $1 AND ` + filter

	var vote model.Vote
	err = r.db.GetContext(ctx, &vote, query, commentID, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &vote, nil
}

// UpdateChoice flips is_like on the voter's existing row. Zero rows affected
// means there was no row to update and the caller falls through to Insert.
func (r *voteRepository) UpdateChoice(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (int64, error) {
	filter, arg, err := voterFilter(voter, 3)
	if err != nil {
		return 0, err
	}

	query := `UPDATE votes SET is_like = $1 WHERE comment_id = $2 AND ` + filter
	result, err := tx.ExecContext(ctx, query, isLike, commentID, arg)
	if err != nil {
		return 0, fmt.Errorf("update vote: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// Insert adds a new vote row. A unique violation means another request for
// the same voter won the insert race; that is reported as conflict=true with
// no error so the caller treats the vote as applied.
func (r *voteRepository) Insert(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (bool, error) {
	if voter.UserID == nil && voter.SessionToken == nil {
		return false, model.ErrVoterUnidentified
	}

	query := `INSERT INTO votes (comment_id, user_id, session_token, is_like) VALUES ($1, $2, $3, $4)`
	_, err := tx.ExecContext(ctx, query, commentID, voter.UserID, voter.SessionToken, isLike)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return true, nil
		}
		return false, fmt.Errorf("insert vote: %w", err)
	}
	return false, nil
}

// DeleteByVoter removes the voter's row for a comment. Absence of a row is
// not an error: toggling off twice is a no-op.
func (r *voteRepository) DeleteByVoter(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter) error {
	filter, arg, err := voterFilter(voter, 2)
	if err != nil {
		return err
	}

	query := `DELETE FROM votes WHERE comment_id = $1 AND ` + filter
	if _, err := tx.ExecContext(ctx, query, commentID, arg); err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}

// Counts recomputes the like/dislike aggregates from the votes table.
func (r *voteRepository) Counts(ctx context.Context, commentID int64) (int, int, error) {
	var counts struct {
		Likes    int `db:"likes"`
		Dislikes int `db:"dislikes"`
	}
	err := r.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) FILTER (WHERE is_like)     AS likes,
		       COUNT(*) FILTER (WHERE NOT is_like) AS dislikes
		FROM votes
		WHERE comment_id = $1
	`, commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("count votes: %w", err)
	}
	return counts.Likes, counts.Dislikes, nil
}
