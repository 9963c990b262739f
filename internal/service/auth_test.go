package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"templora_comments/internal/config"
	"templora_comments/internal/model"
)

// =============================================================================
// MOCK REPOSITORY
// =============================================================================
//
// An in-memory token store is easier than function fields here because
// rotation tests need state across calls.

type memoryRefreshTokenRepo struct {
	byHash map[string]*model.RefreshToken
}

func newMemoryRefreshTokenRepo() *memoryRefreshTokenRepo {
	return &memoryRefreshTokenRepo{byHash: make(map[string]*model.RefreshToken)}
}

func (m *memoryRefreshTokenRepo) Create(ctx context.Context, token *model.RefreshToken) error {
	// The real table declares id NOT NULL with no default, so the caller
	// must supply it. Mirror the constraint to keep the tests honest.
	if token.ID == "" {
		return errors.New(`null value in column "id" violates not-null constraint`)
	}
	token.CreatedAt = time.Now()
	m.byHash[token.TokenHash] = token
	return nil
}

func (m *memoryRefreshTokenRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	token, ok := m.byHash[tokenHash]
	if !ok {
		return nil, model.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (m *memoryRefreshTokenRepo) Revoke(ctx context.Context, id string, replacedBy *string) error {
	for _, token := range m.byHash {
		if token.ID == id {
			now := time.Now()
			token.RevokedAt = &now
			token.ReplacedBy = replacedBy
			return nil
		}
	}
	return model.ErrRefreshTokenNotFound
}

func (m *memoryRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	now := time.Now()
	for _, token := range m.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
		}
	}
	return nil
}

func (m *memoryRefreshTokenRepo) activeCount(userID int64) int {
	n := 0
	for _, token := range m.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			n++
		}
	}
	return n
}

func testAuthService(repo *memoryRefreshTokenRepo) *AuthService {
	return NewAuthService(repo, &config.Config{
		JWTSecret:          "test-secret",
		AccessTokenMaxAge:  900,
		RefreshTokenMaxAge: 3600,
	})
}

// =============================================================================
// TOKEN ISSUANCE
// =============================================================================

func TestAuthService_GenerateTokenPair(t *testing.T) {
	repo := newMemoryRefreshTokenRepo()
	svc := testAuthService(repo)

	pair, err := svc.GenerateTokenPair(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if pair.ExpiresIn != 900 {
		t.Errorf("expires_in = %d, want 900", pair.ExpiresIn)
	}

	// The access token must carry the user_id claim under our secret
	token, err := jwt.Parse(pair.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("access token does not parse: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if got := int64(claims["user_id"].(float64)); got != 7 {
		t.Errorf("user_id claim = %d, want 7", got)
	}

	// Only the hash of the refresh token is stored
	if _, ok := repo.byHash[pair.RefreshToken]; ok {
		t.Error("raw refresh token must not be stored")
	}
	if repo.activeCount(7) != 1 {
		t.Errorf("active refresh tokens = %d, want 1", repo.activeCount(7))
	}

	// The service generates the row id itself; the schema has no default
	for _, stored := range repo.byHash {
		if _, err := uuid.Parse(stored.ID); err != nil {
			t.Errorf("stored token id %q is not a UUID: %v", stored.ID, err)
		}
	}
}

// =============================================================================
// ROTATION AND REUSE
// =============================================================================

func TestAuthService_RefreshRotation(t *testing.T) {
	repo := newMemoryRefreshTokenRepo()
	svc := testAuthService(repo)

	pair, err := svc.GenerateTokenPair(context.Background(), 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	newPair, userID, err := svc.RefreshTokens(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if userID != 7 {
		t.Errorf("userID = %d, want 7", userID)
	}
	if newPair.RefreshToken == pair.RefreshToken {
		t.Error("rotation must issue a fresh refresh token")
	}

	// The old token is now revoked; presenting it again is reuse, which
	// revokes the whole family including the freshly rotated token.
	_, _, err = svc.RefreshTokens(context.Background(), pair.RefreshToken)
	if !errors.Is(err, model.ErrRefreshTokenReused) {
		t.Fatalf("err = %v, want ErrRefreshTokenReused", err)
	}
	if repo.activeCount(7) != 0 {
		t.Errorf("active tokens after reuse = %d, want 0", repo.activeCount(7))
	}
}

func TestAuthService_RefreshUnknownToken(t *testing.T) {
	svc := testAuthService(newMemoryRefreshTokenRepo())

	_, _, err := svc.RefreshTokens(context.Background(), "never-issued")
	if !errors.Is(err, model.ErrRefreshTokenNotFound) {
		t.Errorf("err = %v, want ErrRefreshTokenNotFound", err)
	}
}

func TestAuthService_RefreshExpiredToken(t *testing.T) {
	repo := newMemoryRefreshTokenRepo()
	svc := testAuthService(repo)

	pair, err := svc.GenerateTokenPair(context.Background(), 7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Age the stored token past its expiry
	for _, token := range repo.byHash {
		token.ExpiresAt = time.Now().Add(-time.Minute)
	}

	_, _, err = svc.RefreshTokens(context.Background(), pair.RefreshToken)
	if !errors.Is(err, model.ErrRefreshTokenExpired) {
		t.Errorf("err = %v, want ErrRefreshTokenExpired", err)
	}
}
