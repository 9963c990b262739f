package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"templora_comments/internal/httputil"
	"templora_comments/internal/model"
	"templora_comments/internal/service"
	"templora_comments/internal/transport/http/middleware"
)

type CommentHandler struct {
	commentService *service.CommentService
	voteService    *service.VoteService
}

func NewCommentHandler(commentService *service.CommentService, voteService *service.VoteService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		voteService:    voteService,
	}
}

// viewerFromRequest builds the voter identity for the request: the
// authenticated user when present, otherwise the anonymous session token.
func viewerFromRequest(r *http.Request) model.Voter {
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		return model.Voter{UserID: &user.ID}
	}
	if token := middleware.SessionToken(r); token != "" {
		return model.Voter{SessionToken: &token}
	}
	return model.Voter{}
}

// List handles GET /articles/:id/comments
// Returns the threaded comment tree with vote counts and the caller's
// own vote state. Moderators also see unapproved comments.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	articleIDStr := chi.URLParam(r, "id")
	articleID, err := strconv.ParseInt(articleIDStr, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid article ID")
		return
	}

	moderator := false
	if user, ok := middleware.GetUserFromContext(r.Context()); ok {
		moderator = user.Moderator()
	}

	thread, err := h.commentService.Thread(r.Context(), articleID, viewerFromRequest(r), moderator)
	if err != nil {
		if errors.Is(err, model.ErrArticleNotFound) {
			httputil.WriteNotFound(w, "Article not found")
			return
		}
		log.Printf("[ERROR] List comments handler: article=%d err=%v", articleID, err)
		httputil.WriteInternalError(w, "Failed to get comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, thread)
}

// Create handles POST /articles/:id/comments
// Creates a comment or reply for the authenticated user.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthRequired, "Sign in to comment")
		return
	}

	articleIDStr := chi.URLParam(r, "id")
	articleID, err := strconv.ParseInt(articleIDStr, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid article ID")
		return
	}

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), articleID, user, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrArticleNotFound):
			httputil.WriteNotFound(w, "Article not found")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Parent comment not found")
		case errors.Is(err, model.ErrParentMismatch):
			httputil.WriteBadRequest(w, "Parent comment belongs to a different article")
		case errors.Is(err, model.ErrBodyRequired):
			httputil.WriteBadRequest(w, "Comment body is required")
		case errors.Is(err, model.ErrBodyTooLong):
			httputil.WriteBadRequest(w, "Comment body too long")
		case errors.Is(err, model.ErrContentRejected):
			httputil.WriteUnprocessable(w, model.CodeContentRejected, "Comment was rejected by content moderation")
		case errors.Is(err, model.ErrClassifierFailed):
			log.Printf("[ERROR] Create comment handler: safety check unavailable: user=%d article=%d err=%v", user.ID, articleID, err)
			httputil.WriteError(w, http.StatusServiceUnavailable, "SAFETY_UNAVAILABLE", "Content moderation is temporarily unavailable, try again later")
		default:
			log.Printf("[ERROR] Create comment handler: user=%d article=%d err=%v", user.ID, articleID, err)
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Update handles PATCH /comments/:id
// Edits a comment's body (only the owner can edit).
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthRequired, "Authentication required")
		return
	}

	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req model.UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Update(r.Context(), commentID, user, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only edit your own comments")
		case errors.Is(err, model.ErrBodyRequired):
			httputil.WriteBadRequest(w, "Comment body is required")
		case errors.Is(err, model.ErrBodyTooLong):
			httputil.WriteBadRequest(w, "Comment body too long")
		case errors.Is(err, model.ErrContentRejected):
			httputil.WriteUnprocessable(w, model.CodeContentRejected, "Comment was rejected by content moderation")
		case errors.Is(err, model.ErrClassifierFailed):
			httputil.WriteError(w, http.StatusServiceUnavailable, "SAFETY_UNAVAILABLE", "Content moderation is temporarily unavailable, try again later")
		default:
			log.Printf("[ERROR] Update comment handler: user=%d comment=%d err=%v", user.ID, commentID, err)
			httputil.WriteInternalError(w, "Failed to update comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Delete handles DELETE /comments/:id
// Deletes a comment (owner or moderator).
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthRequired, "Authentication required")
		return
	}

	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	err = h.commentService.Delete(r.Context(), commentID, user)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only delete your own comments")
		default:
			log.Printf("[ERROR] Delete comment handler: user=%d comment=%d err=%v", user.ID, commentID, err)
			httputil.WriteInternalError(w, "Failed to delete comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment deleted successfully",
	})
}

// Vote handles POST /comments/:id/vote
// Applies a like/dislike toggle for the caller. Anonymous callers are
// identified by a session token; one is minted and echoed back in the
// response header when the request carries none.
func (h *CommentHandler) Vote(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req model.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	voter := viewerFromRequest(r)
	if voter.Anonymous() && voter.SessionToken == nil {
		token := uuid.NewString()
		voter.SessionToken = &token
		w.Header().Set(middleware.SessionTokenHeader, token)
	}

	result, err := h.voteService.Apply(r.Context(), commentID, voter, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrInvalidVoteAction):
			httputil.WriteBadRequest(w, "Vote action must be \"like\" or \"dislike\"")
		default:
			log.Printf("[ERROR] Vote handler: comment=%d err=%v", commentID, err)
			httputil.WriteInternalError(w, "Failed to apply vote")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Pin handles PATCH /comments/:id/pin
// Sets or clears the pinned flag (moderators only).
func (h *CommentHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "pin", func(user *model.User, commentID int64) error {
		var req model.PinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errBadBody
		}
		return h.commentService.SetPinned(r.Context(), commentID, user, req.Pinned)
	})
}

// Approve handles PATCH /comments/:id/approve
// Sets or clears the approved flag (moderators only).
func (h *CommentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approve", func(user *model.User, commentID int64) error {
		var req model.ApproveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errBadBody
		}
		return h.commentService.SetApproved(r.Context(), commentID, user, req.Approved)
	})
}

var errBadBody = errors.New("invalid request body")

// moderate shares the auth, parse, and error-mapping path of the two
// moderator toggles.
func (h *CommentHandler) moderate(w http.ResponseWriter, r *http.Request, op string, apply func(user *model.User, commentID int64) error) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorizedWithCode(w, model.CodeAuthRequired, "Authentication required")
		return
	}

	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	err = apply(user, commentID)
	if err != nil {
		switch {
		case errors.Is(err, errBadBody):
			httputil.WriteBadRequest(w, "Invalid request body")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrModeratorOnly):
			httputil.WriteForbidden(w, "Moderator role required")
		default:
			log.Printf("[ERROR] %s comment handler: user=%d comment=%d err=%v", op, user.ID, commentID, err)
			httputil.WriteInternalError(w, "Failed to update comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment updated successfully",
	})
}
