package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"templora_comments/internal/cache"
	"templora_comments/internal/content"
	"templora_comments/internal/model"
	"templora_comments/internal/queue"
	"templora_comments/internal/repository"
	"templora_comments/internal/safety"
	"templora_comments/internal/thread"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	articleRepo repository.ArticleRepository
	classifier  safety.Classifier
	publisher   queue.Publisher
	threadCache cache.ThreadCache
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	articleRepo repository.ArticleRepository,
	classifier safety.Classifier,
	publisher queue.Publisher,
	threadCache cache.ThreadCache,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		classifier:  classifier,
		publisher:   publisher,
		threadCache: threadCache,
	}
}

// Create adds a comment (top-level or reply) for an authenticated user.
// The body runs through the safety classifier before anything is written;
// a classifier outage rejects the submission rather than bypassing the gate.
func (s *CommentService) Create(ctx context.Context, articleID int64, user *model.User, req model.CreateCommentRequest) (*model.Comment, error) {
	if content.Empty(req.Body) {
		return nil, model.ErrBodyRequired
	}
	if len(req.Body) > model.MaxCommentLength {
		return nil, model.ErrBodyTooLong
	}

	exists, err := s.articleRepo.Exists(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("check article exists: %w", err)
	}
	if !exists {
		return nil, model.ErrArticleNotFound
	}

	// Replies must target a comment on the same article.
	if req.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err // ErrCommentNotFound or wrapped error
		}
		if parent.ArticleID != articleID {
			return nil, model.ErrParentMismatch
		}
	}

	verdict, err := s.classifier.Classify(ctx, req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrClassifierFailed, err)
	}
	if !verdict.Safe {
		return nil, fmt.Errorf("%w: %s", model.ErrContentRejected, verdict.Reason)
	}

	// Resolve the body format once at write time; reads never sniff it.
	kind := content.DetectKind(req.Body)
	rendered, err := content.Render(req.Body, kind)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	// Authenticated submissions are approved on creation (trusted by
	// default); moderators can revoke approval afterwards.
	comment, err := s.commentRepo.Create(ctx, articleID, user.ID, rendered, kind, req.ParentID, true)
	if err != nil {
		return nil, err
	}
	comment.Replies = []*model.Comment{}
	comment.Author = &model.UserSummary{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Gender:      user.Gender,
	}

	s.invalidate(ctx, articleID)

	log.Printf("[CommentService] User %d commented on article %d (comment %d)", user.ID, articleID, comment.ID)

	// Publish notification event (after write, best-effort).
	if s.publisher != nil {
		event := s.eventFor(ctx, comment, user.ID)
		if event != nil {
			if _, err := s.publisher.Publish(ctx, queue.StreamComments, *event); err != nil {
				log.Printf("[CommentService] Failed to publish %s event: %v", event.Type, err)
			}
		}
	}

	return comment, nil
}

// eventFor picks the notification event for a new comment, or nil when the
// recipient would be the actor.
func (s *CommentService) eventFor(ctx context.Context, comment *model.Comment, actorID int64) *queue.CommentEvent {
	if comment.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *comment.ParentID)
		if err != nil || parent.UserID == actorID {
			return nil
		}
		event := queue.NewCommentRepliedEvent(comment.ArticleID, comment.ID, *comment.ParentID, actorID)
		return &event
	}

	authorID, err := s.articleRepo.GetAuthorID(ctx, comment.ArticleID)
	if err != nil || authorID == actorID {
		return nil
	}
	event := queue.NewCommentCreatedEvent(comment.ArticleID, comment.ID, actorID)
	return &event
}

// Thread returns the threaded comment forest for an article. Moderators see
// pending comments; everyone else sees approved rows only. The public
// unidentified view is served from the thread cache when warm.
func (s *CommentService) Thread(ctx context.Context, articleID int64, viewer model.Voter, moderator bool) (*model.ThreadResponse, error) {
	exists, err := s.articleRepo.Exists(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("check article exists: %w", err)
	}
	if !exists {
		return nil, model.ErrArticleNotFound
	}

	cacheable := s.threadCache != nil && !moderator && viewer.UserID == nil && viewer.SessionToken == nil
	if cacheable {
		if payload, found, err := s.threadCache.Get(ctx, articleID); err == nil && found {
			var resp model.ThreadResponse
			if err := json.Unmarshal(payload, &resp); err == nil {
				return &resp, nil
			}
			// Corrupt entry: fall through to the database.
		}
	}

	flat, err := s.commentRepo.ListByArticle(ctx, articleID, moderator, viewer)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	roots := thread.Build(flat)
	resp := &model.ThreadResponse{
		Comments: roots,
		Total:    thread.Count(roots),
	}
	if resp.Comments == nil {
		resp.Comments = []*model.Comment{}
	}

	if cacheable {
		if payload, err := json.Marshal(resp); err == nil {
			if err := s.threadCache.Set(ctx, articleID, payload); err != nil {
				log.Printf("[CommentService] Thread cache set failed for article %d: %v", articleID, err)
			}
		}
	}

	return resp, nil
}

// Update edits a comment body. Author only; the new body runs through the
// safety gate and the render pipeline like a fresh submission.
func (s *CommentService) Update(ctx context.Context, commentID int64, user *model.User, req model.UpdateCommentRequest) (*model.Comment, error) {
	if content.Empty(req.Body) {
		return nil, model.ErrBodyRequired
	}
	if len(req.Body) > model.MaxCommentLength {
		return nil, model.ErrBodyTooLong
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != user.ID {
		return nil, model.ErrNotCommentOwner
	}

	verdict, err := s.classifier.Classify(ctx, req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrClassifierFailed, err)
	}
	if !verdict.Safe {
		return nil, fmt.Errorf("%w: %s", model.ErrContentRejected, verdict.Reason)
	}

	kind := content.DetectKind(req.Body)
	rendered, err := content.Render(req.Body, kind)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	if err := s.commentRepo.UpdateBody(ctx, commentID, rendered, kind); err != nil {
		return nil, err
	}

	comment.Body = rendered
	comment.BodyKind = kind
	s.invalidate(ctx, comment.ArticleID)

	log.Printf("[CommentService] User %d updated comment %d", user.ID, commentID)
	return comment, nil
}

// Delete removes a comment. Author or moderator. Hard delete: replies keep
// their parent_id and surface as thread roots afterwards.
func (s *CommentService) Delete(ctx context.Context, commentID int64, user *model.User) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != user.ID && !user.Moderator() {
		return model.ErrNotCommentOwner
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}

	s.invalidate(ctx, comment.ArticleID)
	log.Printf("[CommentService] User %d deleted comment %d from article %d", user.ID, commentID, comment.ArticleID)
	return nil
}

// SetPinned toggles the pin flag. Moderator only; any number of comments may
// be pinned at once.
func (s *CommentService) SetPinned(ctx context.Context, commentID int64, user *model.User, pinned bool) error {
	if !user.Moderator() {
		return model.ErrModeratorOnly
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if err := s.commentRepo.SetPinned(ctx, commentID, pinned); err != nil {
		return err
	}

	s.invalidate(ctx, comment.ArticleID)
	log.Printf("[CommentService] Moderator %d set pinned=%v on comment %d", user.ID, pinned, commentID)
	return nil
}

// SetApproved toggles approval. Moderator only. Unapproved comments drop out
// of the public thread but stay visible to moderators.
func (s *CommentService) SetApproved(ctx context.Context, commentID int64, user *model.User, approved bool) error {
	if !user.Moderator() {
		return model.ErrModeratorOnly
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if err := s.commentRepo.SetApproved(ctx, commentID, approved); err != nil {
		return err
	}

	s.invalidate(ctx, comment.ArticleID)
	log.Printf("[CommentService] Moderator %d set approved=%v on comment %d", user.ID, approved, commentID)
	return nil
}

func (s *CommentService) invalidate(ctx context.Context, articleID int64) {
	if s.threadCache == nil {
		return
	}
	if err := s.threadCache.Invalidate(ctx, articleID); err != nil {
		log.Printf("[CommentService] Cache invalidation failed for article %d: %v", articleID, err)
	}
}
