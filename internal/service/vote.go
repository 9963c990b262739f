package service

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/cache"
	"templora_comments/internal/model"
	"templora_comments/internal/queue"
	"templora_comments/internal/repository"
)

// VoteService reconciles like/dislike actions against the voter's current
// vote. Per (comment, voter) pair the state machine over {none, like,
// dislike} is: a repeated action toggles off, the opposite action switches,
// and a first action sets the choice.
type VoteService struct {
	voteRepo    repository.VoteRepository
	commentRepo repository.CommentRepository
	db          *sqlx.DB
	publisher   queue.Publisher
	threadCache cache.ThreadCache
}

func NewVoteService(
	voteRepo repository.VoteRepository,
	commentRepo repository.CommentRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
	threadCache cache.ThreadCache,
) *VoteService {
	return &VoteService{
		voteRepo:    voteRepo,
		commentRepo: commentRepo,
		db:          db,
		publisher:   publisher,
		threadCache: threadCache,
	}
}

// reconcile computes the target state and count deltas for an action against
// the current state. Pure.
func reconcile(current model.VoteState, action model.VoteAction) (target model.VoteState, likeDelta, dislikeDelta int) {
	switch current {
	case model.VoteStateLike:
		if action == model.VoteActionLike {
			return model.VoteStateNone, -1, 0
		}
		return model.VoteStateDislike, -1, +1
	case model.VoteStateDislike:
		if action == model.VoteActionDislike {
			return model.VoteStateNone, 0, -1
		}
		return model.VoteStateLike, +1, -1
	default:
		if action == model.VoteActionLike {
			return model.VoteStateLike, +1, 0
		}
		return model.VoteStateDislike, 0, +1
	}
}

// stateOf maps an existing vote row (possibly nil) to a VoteState.
func stateOf(vote *model.Vote) model.VoteState {
	switch {
	case vote == nil:
		return model.VoteStateNone
	case vote.IsLike:
		return model.VoteStateLike
	default:
		return model.VoteStateDislike
	}
}

// Apply runs one vote action for a voter on a comment and persists the
// reconciled state.
//
// The store cannot upsert on the voter key (it is one of two nullable
// columns under partial unique indexes), so persistence is update-then-
// insert: try flipping the existing row; if no row was there, insert one; if
// the insert loses a concurrent first-vote race to a unique violation, the
// vote already exists and the action is treated as applied.
func (s *VoteService) Apply(ctx context.Context, commentID int64, voter model.Voter, action model.VoteAction) (*model.VoteResult, error) {
	if !action.Valid() {
		return nil, model.ErrInvalidVoteAction
	}
	if voter.UserID == nil && voter.SessionToken == nil {
		return nil, model.ErrVoterUnidentified
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err // ErrCommentNotFound or wrapped error
	}

	current, err := s.voteRepo.GetByVoter(ctx, commentID, voter)
	if err != nil {
		return nil, err
	}

	target, likeDelta, dislikeDelta := reconcile(stateOf(current), action)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if target == model.VoteStateNone {
		if err := s.voteRepo.DeleteByVoter(ctx, tx, commentID, voter); err != nil {
			return nil, err
		}
	} else {
		isLike := target == model.VoteStateLike
		rows, err := s.voteRepo.UpdateChoice(ctx, tx, commentID, voter, isLike)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			conflict, err := s.voteRepo.Insert(ctx, tx, commentID, voter, isLike)
			if err != nil {
				return nil, err
			}
			if conflict {
				log.Printf("[VoteService] First-vote insert race on comment %d, treating as applied", commentID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	likes, dislikes, err := s.voteRepo.Counts(ctx, commentID)
	if err != nil {
		return nil, err
	}

	// Cached public thread carries stale counts now.
	if s.threadCache != nil {
		if err := s.threadCache.Invalidate(ctx, comment.ArticleID); err != nil {
			log.Printf("[VoteService] Cache invalidation failed for article %d: %v", comment.ArticleID, err)
		}
	}

	// Notify the comment author of a fresh like (after commit, best-effort).
	// Anonymous voters have no actor identity, and self-likes are skipped.
	if s.publisher != nil && target == model.VoteStateLike && voter.UserID != nil && *voter.UserID != comment.UserID {
		event := queue.NewCommentVotedEvent(comment.ArticleID, commentID, *voter.UserID)
		if _, err := s.publisher.Publish(ctx, queue.StreamComments, event); err != nil {
			log.Printf("[VoteService] Failed to publish CommentVoted event: %v", err)
		}
	}

	return &model.VoteResult{
		NewState:     target,
		LikeDelta:    likeDelta,
		DislikeDelta: dislikeDelta,
		LikeCount:    likes,
		DislikeCount: dislikes,
	}, nil
}
