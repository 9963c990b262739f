package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/model"
	"templora_comments/internal/queue"
	"templora_comments/internal/safety"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// The services depend on repository interfaces, so tests swap in mocks with
// per-test behavior and call tracking.

type mockCommentRepository struct {
	createFn        func(ctx context.Context, articleID, userID int64, body string, kind model.ContentKind, parentID *int64, approved bool) (*model.Comment, error)
	getByIDFn       func(ctx context.Context, id int64) (*model.Comment, error)
	listByArticleFn func(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error)
	updateBodyFn    func(ctx context.Context, commentID int64, body string, kind model.ContentKind) error
	deleteFn        func(ctx context.Context, commentID int64) error
	setPinnedFn     func(ctx context.Context, commentID int64, pinned bool) error
	setApprovedFn   func(ctx context.Context, commentID int64, approved bool) error

	createCalls int
	deleteCalls int
}

func (m *mockCommentRepository) Create(ctx context.Context, articleID, userID int64, body string, kind model.ContentKind, parentID *int64, approved bool) (*model.Comment, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, articleID, userID, body, kind, parentID, approved)
	}
	return &model.Comment{
		ID:        1,
		ArticleID: articleID,
		UserID:    userID,
		ParentID:  parentID,
		Body:      body,
		BodyKind:  kind,
		Approved:  approved,
		CreatedAt: time.Now(),
	}, nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) ListByArticle(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error) {
	if m.listByArticleFn != nil {
		return m.listByArticleFn(ctx, articleID, includePending, viewer)
	}
	return nil, nil
}

func (m *mockCommentRepository) UpdateBody(ctx context.Context, commentID int64, body string, kind model.ContentKind) error {
	if m.updateBodyFn != nil {
		return m.updateBodyFn(ctx, commentID, body, kind)
	}
	return nil
}

func (m *mockCommentRepository) Delete(ctx context.Context, commentID int64) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, commentID)
	}
	return nil
}

func (m *mockCommentRepository) SetPinned(ctx context.Context, commentID int64, pinned bool) error {
	if m.setPinnedFn != nil {
		return m.setPinnedFn(ctx, commentID, pinned)
	}
	return nil
}

func (m *mockCommentRepository) SetApproved(ctx context.Context, commentID int64, approved bool) error {
	if m.setApprovedFn != nil {
		return m.setApprovedFn(ctx, commentID, approved)
	}
	return nil
}

type mockArticleRepository struct {
	existsFn      func(ctx context.Context, articleID int64) (bool, error)
	getAuthorIDFn func(ctx context.Context, articleID int64) (int64, error)
}

func (m *mockArticleRepository) Exists(ctx context.Context, articleID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, articleID)
	}
	return true, nil
}

func (m *mockArticleRepository) GetAuthorID(ctx context.Context, articleID int64) (int64, error) {
	if m.getAuthorIDFn != nil {
		return m.getAuthorIDFn(ctx, articleID)
	}
	return 0, model.ErrArticleNotFound
}

type mockVoteRepository struct {
	getByVoterFn func(ctx context.Context, commentID int64, voter model.Voter) (*model.Vote, error)
	countsFn     func(ctx context.Context, commentID int64) (int, int, error)
}

func (m *mockVoteRepository) GetByVoter(ctx context.Context, commentID int64, voter model.Voter) (*model.Vote, error) {
	if m.getByVoterFn != nil {
		return m.getByVoterFn(ctx, commentID, voter)
	}
	return nil, nil
}

func (m *mockVoteRepository) UpdateChoice(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (int64, error) {
	return 0, nil
}

func (m *mockVoteRepository) Insert(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter, isLike bool) (bool, error) {
	return false, nil
}

func (m *mockVoteRepository) DeleteByVoter(ctx context.Context, tx *sqlx.Tx, commentID int64, voter model.Voter) error {
	return nil
}

func (m *mockVoteRepository) Counts(ctx context.Context, commentID int64) (int, int, error) {
	if m.countsFn != nil {
		return m.countsFn(ctx, commentID)
	}
	return 0, 0, nil
}

// mockClassifier lets tests control the safety gate's verdict.
type mockClassifier struct {
	classifyFn func(ctx context.Context, text string) (safety.Verdict, error)
	calls      int
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (safety.Verdict, error) {
	m.calls++
	if m.classifyFn != nil {
		return m.classifyFn(ctx, text)
	}
	return safety.Verdict{Safe: true}, nil
}

type publishedEvent struct {
	Stream string
	Event  queue.CommentEvent
}

type mockPublisher struct {
	published []publishedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.CommentEvent) (string, error) {
	m.published = append(m.published, publishedEvent{Stream: stream, Event: event})
	return "1-0", nil
}

type mockThreadCache struct {
	store       map[int64][]byte
	invalidated []int64
}

func newMockThreadCache() *mockThreadCache {
	return &mockThreadCache{store: make(map[int64][]byte)}
}

func (m *mockThreadCache) Get(ctx context.Context, articleID int64) ([]byte, bool, error) {
	payload, ok := m.store[articleID]
	return payload, ok, nil
}

func (m *mockThreadCache) Set(ctx context.Context, articleID int64, payload []byte) error {
	m.store[articleID] = payload
	return nil
}

func (m *mockThreadCache) Invalidate(ctx context.Context, articleID int64) error {
	m.invalidated = append(m.invalidated, articleID)
	delete(m.store, articleID)
	return nil
}

func testUser(id int64) *model.User {
	return &model.User{ID: id, Email: "user@example.com", DisplayName: "User", Role: model.RoleUser}
}

func testModerator(id int64) *model.User {
	return &model.User{ID: id, Email: "mod@example.com", DisplayName: "Mod", Role: model.RoleAdmin}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCommentService_Create_Success(t *testing.T) {
	commentRepo := &mockCommentRepository{}
	articleRepo := &mockArticleRepository{
		getAuthorIDFn: func(ctx context.Context, articleID int64) (int64, error) {
			return 99, nil // someone other than the commenter
		},
	}
	classifier := &mockClassifier{}
	publisher := &mockPublisher{}
	cache := newMockThreadCache()
	svc := NewCommentService(commentRepo, articleRepo, classifier, publisher, cache)

	user := testUser(7)
	comment, err := svc.Create(context.Background(), 5, user, model.CreateCommentRequest{Body: "Nice template!"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !comment.Approved {
		t.Error("new comments should be approved on creation")
	}
	if comment.Author == nil || comment.Author.ID != user.ID {
		t.Errorf("author = %+v, want summary for user %d", comment.Author, user.ID)
	}
	if comment.Replies == nil {
		t.Error("replies should be an empty slice, not nil")
	}
	if classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", classifier.calls)
	}

	// Article author differs from the commenter, so an event goes out
	if len(publisher.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.published))
	}
	if got := publisher.published[0].Event.Type; got != queue.EventCommentCreated {
		t.Errorf("event type = %q, want %q", got, queue.EventCommentCreated)
	}
	if len(cache.invalidated) == 0 {
		t.Error("thread cache should be invalidated after a write")
	}
}

func TestCommentService_Create_UnsafeContentNeverPersisted(t *testing.T) {
	commentRepo := &mockCommentRepository{}
	classifier := &mockClassifier{
		classifyFn: func(ctx context.Context, text string) (safety.Verdict, error) {
			return safety.Verdict{Safe: false, Reason: "toxicity"}, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, classifier, nil, nil)

	_, err := svc.Create(context.Background(), 5, testUser(7), model.CreateCommentRequest{Body: "something hostile"})
	if !errors.Is(err, model.ErrContentRejected) {
		t.Fatalf("err = %v, want ErrContentRejected", err)
	}
	if commentRepo.createCalls != 0 {
		t.Error("rejected content must not reach the repository")
	}
}

func TestCommentService_Create_ClassifierOutageBlocksSubmission(t *testing.T) {
	commentRepo := &mockCommentRepository{}
	classifier := &mockClassifier{
		classifyFn: func(ctx context.Context, text string) (safety.Verdict, error) {
			return safety.Verdict{}, errors.New("connection refused")
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, classifier, nil, nil)

	_, err := svc.Create(context.Background(), 5, testUser(7), model.CreateCommentRequest{Body: "hello"})
	if !errors.Is(err, model.ErrClassifierFailed) {
		t.Fatalf("err = %v, want ErrClassifierFailed", err)
	}
	if commentRepo.createCalls != 0 {
		t.Error("an unavailable classifier must not silently admit content")
	}
}

func TestCommentService_Create_Validation(t *testing.T) {
	svc := NewCommentService(&mockCommentRepository{}, &mockArticleRepository{}, &mockClassifier{}, nil, nil)
	user := testUser(7)

	_, err := svc.Create(context.Background(), 5, user, model.CreateCommentRequest{Body: "   "})
	if !errors.Is(err, model.ErrBodyRequired) {
		t.Errorf("blank body: err = %v, want ErrBodyRequired", err)
	}

	long := make([]byte, model.MaxCommentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Create(context.Background(), 5, user, model.CreateCommentRequest{Body: string(long)})
	if !errors.Is(err, model.ErrBodyTooLong) {
		t.Errorf("oversized body: err = %v, want ErrBodyTooLong", err)
	}
}

func TestCommentService_Create_ArticleNotFound(t *testing.T) {
	articleRepo := &mockArticleRepository{
		existsFn: func(ctx context.Context, articleID int64) (bool, error) {
			return false, nil
		},
	}
	svc := NewCommentService(&mockCommentRepository{}, articleRepo, &mockClassifier{}, nil, nil)

	_, err := svc.Create(context.Background(), 404, testUser(7), model.CreateCommentRequest{Body: "hi"})
	if !errors.Is(err, model.ErrArticleNotFound) {
		t.Errorf("err = %v, want ErrArticleNotFound", err)
	}
}

func TestCommentService_Create_ParentOnDifferentArticle(t *testing.T) {
	parentID := int64(3)
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 8}, nil // different article
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	_, err := svc.Create(context.Background(), 5, testUser(7), model.CreateCommentRequest{
		Body:     "reply",
		ParentID: &parentID,
	})
	if !errors.Is(err, model.ErrParentMismatch) {
		t.Errorf("err = %v, want ErrParentMismatch", err)
	}
	if commentRepo.createCalls != 0 {
		t.Error("cross-article reply must not be created")
	}
}

func TestCommentService_Create_ReplyPublishesRepliedEvent(t *testing.T) {
	parentID := int64(3)
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: 42}, nil
		},
	}
	publisher := &mockPublisher{}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, publisher, nil)

	_, err := svc.Create(context.Background(), 5, testUser(7), model.CreateCommentRequest{
		Body:     "reply",
		ParentID: &parentID,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.published))
	}
	event := publisher.published[0].Event
	if event.Type != queue.EventCommentReplied {
		t.Errorf("event type = %q, want %q", event.Type, queue.EventCommentReplied)
	}
	if event.ParentID != parentID {
		t.Errorf("event parent = %d, want %d", event.ParentID, parentID)
	}
}

func TestCommentService_Create_SelfReplyPublishesNothing(t *testing.T) {
	parentID := int64(3)
	user := testUser(7)
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: user.ID}, nil
		},
	}
	publisher := &mockPublisher{}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, publisher, nil)

	_, err := svc.Create(context.Background(), 5, user, model.CreateCommentRequest{
		Body:     "following up on my own comment",
		ParentID: &parentID,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Errorf("published events = %d, want 0 for a self-reply", len(publisher.published))
	}
}

// =============================================================================
// THREAD
// =============================================================================

func TestCommentService_Thread_BuildsTree(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	parentID := int64(1)
	commentRepo := &mockCommentRepository{
		listByArticleFn: func(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error) {
			return []*model.Comment{
				{ID: 1, ArticleID: articleID, Approved: true, CreatedAt: base},
				{ID: 2, ArticleID: articleID, Approved: true, ParentID: &parentID, CreatedAt: base.Add(time.Minute)},
				{ID: 3, ArticleID: articleID, Approved: true, CreatedAt: base.Add(2 * time.Minute)},
			}, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	userID := int64(7)
	resp, err := svc.Thread(context.Background(), 5, model.Voter{UserID: &userID}, false)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Comments) != 2 {
		t.Fatalf("roots = %d, want 2", len(resp.Comments))
	}
	// Unpinned roots are newest first
	if resp.Comments[0].ID != 3 || resp.Comments[1].ID != 1 {
		t.Errorf("root order = [%d %d], want [3 1]", resp.Comments[0].ID, resp.Comments[1].ID)
	}
	if len(resp.Comments[1].Replies) != 1 || resp.Comments[1].Replies[0].ID != 2 {
		t.Error("comment 2 should be nested under comment 1")
	}
}

func TestCommentService_Thread_CachesPublicViewOnly(t *testing.T) {
	calls := 0
	commentRepo := &mockCommentRepository{
		listByArticleFn: func(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error) {
			calls++
			return nil, nil
		},
	}
	cache := newMockThreadCache()
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, cache)

	// Anonymous view without a session token: cacheable
	if _, err := svc.Thread(context.Background(), 5, model.Voter{}, false); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if _, err := svc.Thread(context.Background(), 5, model.Voter{}, false); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("repository calls = %d, want 1 (second read served from cache)", calls)
	}

	// Identified viewer carries per-viewer vote state: never cached
	userID := int64(7)
	if _, err := svc.Thread(context.Background(), 5, model.Voter{UserID: &userID}, false); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("repository calls = %d, want 2 (identified view bypasses cache)", calls)
	}
}

func TestCommentService_Thread_ModeratorSeesPending(t *testing.T) {
	var sawIncludePending bool
	commentRepo := &mockCommentRepository{
		listByArticleFn: func(ctx context.Context, articleID int64, includePending bool, viewer model.Voter) ([]*model.Comment, error) {
			sawIncludePending = includePending
			return nil, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	modID := int64(2)
	if _, err := svc.Thread(context.Background(), 5, model.Voter{UserID: &modID}, true); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !sawIncludePending {
		t.Error("moderator view should request pending comments")
	}
}

// =============================================================================
// UPDATE / DELETE OWNERSHIP
// =============================================================================

func TestCommentService_Update_NotOwner(t *testing.T) {
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: 99}, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	_, err := svc.Update(context.Background(), 1, testUser(7), model.UpdateCommentRequest{Body: "edited"})
	if !errors.Is(err, model.ErrNotCommentOwner) {
		t.Errorf("err = %v, want ErrNotCommentOwner", err)
	}
}

func TestCommentService_Update_RunsSafetyGate(t *testing.T) {
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: 7}, nil
		},
	}
	classifier := &mockClassifier{
		classifyFn: func(ctx context.Context, text string) (safety.Verdict, error) {
			return safety.Verdict{Safe: false, Reason: "spam"}, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, classifier, nil, nil)

	_, err := svc.Update(context.Background(), 1, testUser(7), model.UpdateCommentRequest{Body: "buy now"})
	if !errors.Is(err, model.ErrContentRejected) {
		t.Errorf("err = %v, want ErrContentRejected", err)
	}
}

func TestCommentService_Delete_OwnerOrModerator(t *testing.T) {
	newRepo := func() *mockCommentRepository {
		return &mockCommentRepository{
			getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
				return &model.Comment{ID: id, ArticleID: 5, UserID: 7}, nil
			},
		}
	}

	// Owner can delete
	repo := newRepo()
	svc := NewCommentService(repo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)
	if err := svc.Delete(context.Background(), 1, testUser(7)); err != nil {
		t.Errorf("owner delete: err = %v, want nil", err)
	}
	if repo.deleteCalls != 1 {
		t.Errorf("owner delete calls = %d, want 1", repo.deleteCalls)
	}

	// Moderator can delete someone else's comment
	repo = newRepo()
	svc = NewCommentService(repo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)
	if err := svc.Delete(context.Background(), 1, testModerator(2)); err != nil {
		t.Errorf("moderator delete: err = %v, want nil", err)
	}

	// A third party cannot
	repo = newRepo()
	svc = NewCommentService(repo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)
	if err := svc.Delete(context.Background(), 1, testUser(8)); !errors.Is(err, model.ErrNotCommentOwner) {
		t.Errorf("stranger delete: err = %v, want ErrNotCommentOwner", err)
	}
	if repo.deleteCalls != 0 {
		t.Error("stranger delete must not reach the repository")
	}
}

// =============================================================================
// MODERATION TOGGLES
// =============================================================================

func TestCommentService_SetPinned_ModeratorOnly(t *testing.T) {
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: 7}, nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	if err := svc.SetPinned(context.Background(), 1, testUser(7), true); !errors.Is(err, model.ErrModeratorOnly) {
		t.Errorf("regular user: err = %v, want ErrModeratorOnly", err)
	}
	if err := svc.SetPinned(context.Background(), 1, testModerator(2), true); err != nil {
		t.Errorf("moderator: err = %v, want nil", err)
	}
}

func TestCommentService_SetApproved_ModeratorOnly(t *testing.T) {
	var gotApproved *bool
	commentRepo := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.Comment, error) {
			return &model.Comment{ID: id, ArticleID: 5, UserID: 7, Approved: true}, nil
		},
		setApprovedFn: func(ctx context.Context, commentID int64, approved bool) error {
			gotApproved = &approved
			return nil
		},
	}
	svc := NewCommentService(commentRepo, &mockArticleRepository{}, &mockClassifier{}, nil, nil)

	if err := svc.SetApproved(context.Background(), 1, testUser(7), false); !errors.Is(err, model.ErrModeratorOnly) {
		t.Errorf("regular user: err = %v, want ErrModeratorOnly", err)
	}
	if err := svc.SetApproved(context.Background(), 1, testModerator(2), false); err != nil {
		t.Errorf("moderator: err = %v, want nil", err)
	}
	if gotApproved == nil || *gotApproved {
		t.Error("approval revocation should reach the repository with approved=false")
	}
}
