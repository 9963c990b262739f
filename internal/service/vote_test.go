package service

import (
	"context"
	"testing"

	"templora_comments/internal/model"
)

// =============================================================================
// RECONCILE STATE MACHINE
// =============================================================================
//
// Every vote action resolves against the voter's current state:
// repeat toggles off, opposite switches, first action sets the choice.
// The table below covers all six transitions.

func TestReconcile_AllTransitions(t *testing.T) {
	tests := []struct {
		name         string
		current      model.VoteState
		action       model.VoteAction
		wantTarget   model.VoteState
		wantLikeD    int
		wantDislikeD int
	}{
		{"none + like sets like", model.VoteStateNone, model.VoteActionLike, model.VoteStateLike, +1, 0},
		{"none + dislike sets dislike", model.VoteStateNone, model.VoteActionDislike, model.VoteStateDislike, 0, +1},
		{"like + like toggles off", model.VoteStateLike, model.VoteActionLike, model.VoteStateNone, -1, 0},
		{"like + dislike switches", model.VoteStateLike, model.VoteActionDislike, model.VoteStateDislike, -1, +1},
		{"dislike + dislike toggles off", model.VoteStateDislike, model.VoteActionDislike, model.VoteStateNone, 0, -1},
		{"dislike + like switches", model.VoteStateDislike, model.VoteActionLike, model.VoteStateLike, +1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, likeD, dislikeD := reconcile(tt.current, tt.action)
			if target != tt.wantTarget {
				t.Errorf("target = %q, want %q", target, tt.wantTarget)
			}
			if likeD != tt.wantLikeD {
				t.Errorf("like delta = %d, want %d", likeD, tt.wantLikeD)
			}
			if dislikeD != tt.wantDislikeD {
				t.Errorf("dislike delta = %d, want %d", dislikeD, tt.wantDislikeD)
			}
		})
	}
}

// A user un-liking a comment at 3 likes leaves 2; liking at 3 leaves 4.
// The delta is what a client applies to its optimistic count.
func TestReconcile_DeltaArithmetic(t *testing.T) {
	likes := 3

	_, likeD, _ := reconcile(model.VoteStateNone, model.VoteActionLike)
	if likes+likeD != 4 {
		t.Errorf("3 likes + first like = %d, want 4", likes+likeD)
	}

	_, likeD, _ = reconcile(model.VoteStateLike, model.VoteActionLike)
	if likes+likeD != 2 {
		t.Errorf("3 likes + un-like = %d, want 2", likes+likeD)
	}
}

// Toggling the same action twice always lands back on none with deltas
// summing to zero.
func TestReconcile_ToggleIsIdempotentPair(t *testing.T) {
	for _, action := range []model.VoteAction{model.VoteActionLike, model.VoteActionDislike} {
		mid, l1, d1 := reconcile(model.VoteStateNone, action)
		final, l2, d2 := reconcile(mid, action)

		if final != model.VoteStateNone {
			t.Errorf("double %s: final state = %q, want none", action, final)
		}
		if l1+l2 != 0 || d1+d2 != 0 {
			t.Errorf("double %s: deltas sum to (%d, %d), want (0, 0)", action, l1+l2, d1+d2)
		}
	}
}

func TestStateOf(t *testing.T) {
	if got := stateOf(nil); got != model.VoteStateNone {
		t.Errorf("stateOf(nil) = %q, want none", got)
	}
	if got := stateOf(&model.Vote{IsLike: true}); got != model.VoteStateLike {
		t.Errorf("stateOf(like row) = %q, want like", got)
	}
	if got := stateOf(&model.Vote{IsLike: false}); got != model.VoteStateDislike {
		t.Errorf("stateOf(dislike row) = %q, want dislike", got)
	}
}

// =============================================================================
// APPLY VALIDATION
// =============================================================================

func TestVoteService_Apply_InvalidAction(t *testing.T) {
	svc := NewVoteService(nil, nil, nil, nil, nil)

	userID := int64(1)
	_, err := svc.Apply(context.Background(), 1, model.Voter{UserID: &userID}, "upvote")
	if err != model.ErrInvalidVoteAction {
		t.Errorf("err = %v, want ErrInvalidVoteAction", err)
	}
}

func TestVoteService_Apply_UnidentifiedVoter(t *testing.T) {
	svc := NewVoteService(nil, nil, nil, nil, nil)

	_, err := svc.Apply(context.Background(), 1, model.Voter{}, model.VoteActionLike)
	if err != model.ErrVoterUnidentified {
		t.Errorf("err = %v, want ErrVoterUnidentified", err)
	}
}

func TestVoteService_Apply_CommentNotFound(t *testing.T) {
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return nil, model.ErrCommentNotFound
		},
	}
	svc := NewVoteService(&mockVoteRepository{}, commentRepo, nil, nil, nil)

	token := "7b0d1f1e-9a6f-4a3e-8b1a-2f4c5d6e7f80"
	_, err := svc.Apply(context.Background(), 42, model.Voter{SessionToken: &token}, model.VoteActionLike)
	if err != model.ErrCommentNotFound {
		t.Errorf("err = %v, want ErrCommentNotFound", err)
	}
}
