package model

import (
	"errors"
	"time"
)

// VoteState is the per-voter state for a single comment.
type VoteState string

const (
	VoteStateNone    VoteState = "none"
	VoteStateLike    VoteState = "like"
	VoteStateDislike VoteState = "dislike"
)

// VoteAction is the requested action on a comment.
type VoteAction string

const (
	VoteActionLike    VoteAction = "like"
	VoteActionDislike VoteAction = "dislike"
)

// Valid reports whether the action is one of the two allowed values.
func (a VoteAction) Valid() bool {
	return a == VoteActionLike || a == VoteActionDislike
}

// Voter identifies who is voting: exactly one of UserID (authenticated) or
// SessionToken (anonymous, client-persisted UUID) is set.
type Voter struct {
	UserID       *int64
	SessionToken *string
}

// Anonymous reports whether the voter is identified by a session token.
func (v Voter) Anonymous() bool {
	return v.UserID == nil
}

// Vote is a single like/dislike row. At most one row exists per
// (comment, voter) pair; the votes table enforces this with two partial
// unique indexes because the voter is one of two nullable columns.
type Vote struct {
	ID           int64     `db:"id" json:"id"`
	CommentID    int64     `db:"comment_id" json:"comment_id"`
	UserID       *int64    `db:"user_id" json:"user_id,omitempty"`
	SessionToken *string   `db:"session_token" json:"-"`
	IsLike       bool      `db:"is_like" json:"is_like"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// VoteRequest is the request body for POST /comments/{id}/vote.
type VoteRequest struct {
	Action VoteAction `json:"action"`
}

// VoteResult reports the reconciled state after a vote action. The deltas
// let a client adjust optimistic counts; the counts are the fresh aggregates
// read back from the votes table.
type VoteResult struct {
	NewState     VoteState `json:"new_state"`
	LikeDelta    int       `json:"like_delta"`
	DislikeDelta int       `json:"dislike_delta"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
}

// Vote errors
var (
	ErrInvalidVoteAction = errors.New("invalid vote action")
	ErrVoterUnidentified = errors.New("voter has neither user id nor session token")
)
