package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"templora_comments/internal/model"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// setupTestDB connects to the postgres named by TEST_DATABASE_URL. The
// migrations under migrations/ must already be applied there.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	return db
}

// seedComment inserts a user, an article, and one comment. Cleanup deletes
// the user, which cascades through the article, the comment, and any votes.
func seedComment(t *testing.T, db *sqlx.DB) (commentID, userID int64) {
	t.Helper()
	ctx := context.Background()
	tag := fmt.Sprintf("%d", time.Now().UnixNano())

	err := db.QueryRowxContext(ctx, `
		INSERT INTO users (email, password_hashed, display_name)
		VALUES ($1, 'x', 'Vote Fixture')
		RETURNING id
	`, "vote-fixture-"+tag+"@example.com").Scan(&userID)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})

	var articleID int64
	err = db.QueryRowxContext(ctx, `
		INSERT INTO articles (user_id, title, slug)
		VALUES ($1, 'Vote fixture', $2)
		RETURNING id
	`, userID, "vote-fixture-"+tag).Scan(&articleID)
	if err != nil {
		t.Fatalf("seed article: %v", err)
	}

	err = db.QueryRowxContext(ctx, `
		INSERT INTO comments (article_id, user_id, body, body_kind)
		VALUES ($1, $2, 'fixture body', 'legacy')
		RETURNING id
	`, articleID, userID).Scan(&commentID)
	if err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return commentID, userID
}

// =============================================================================
// INSERT RACE
// =============================================================================

// Two requests for the same voter can both see no existing row and race on
// the insert. The loser hits one of the partial unique indexes; that must
// surface as conflict=true with no error, and the winner's row stands.
func TestVoteRepository_DuplicateInsertIsConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewVoteRepository(db)
	ctx := context.Background()
	commentID, userID := seedComment(t, db)

	sessionToken := fmt.Sprintf("sess-%d", time.Now().UnixNano())
	voters := []struct {
		name  string
		voter model.Voter
	}{
		{"identified voter", model.Voter{UserID: &userID}},
		{"anonymous voter", model.Voter{SessionToken: &sessionToken}},
	}

	for _, tc := range voters {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				t.Fatalf("begin: %v", err)
			}
			conflict, err := repo.Insert(ctx, tx, commentID, tc.voter, true)
			if err != nil {
				tx.Rollback()
				t.Fatalf("first insert: %v", err)
			}
			if conflict {
				tx.Rollback()
				t.Fatal("first insert must not report a conflict")
			}
			if err := tx.Commit(); err != nil {
				t.Fatalf("commit: %v", err)
			}

			// The losing request. A unique violation aborts its transaction,
			// so it runs in its own tx just like a real concurrent request.
			tx2, err := db.BeginTxx(ctx, nil)
			if err != nil {
				t.Fatalf("begin: %v", err)
			}
			conflict, err = repo.Insert(ctx, tx2, commentID, tc.voter, false)
			tx2.Rollback()
			if err != nil {
				t.Fatalf("racing insert: %v", err)
			}
			if !conflict {
				t.Error("racing insert must report conflict=true")
			}
		})
	}

	// The losing dislike never landed: both voters hold the winning like.
	likes, dislikes, err := repo.Counts(ctx, commentID)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if likes != 2 || dislikes != 0 {
		t.Errorf("counts = (%d, %d), want (2, 0)", likes, dislikes)
	}
}

// =============================================================================
// TOGGLE OFF TWICE
// =============================================================================

// Removing a vote that is not there is not an error: a repeated toggle-off
// just leaves the row absent.
func TestVoteRepository_DeleteAbsentVoteIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewVoteRepository(db)
	ctx := context.Background()
	commentID, userID := seedComment(t, db)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if err := repo.DeleteByVoter(ctx, tx, commentID, model.Voter{UserID: &userID}); err != nil {
		t.Fatalf("delete with no vote present: %v", err)
	}
}
