package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"templora_comments/internal/httputil"
	"templora_comments/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserKey is the context key for the authenticated user
	UserKey contextKey = "user"
)

// SessionTokenHeader carries the anonymous session identity for voters
// who are not signed in.
const SessionTokenHeader = "X-Session-Token"

// UserLoader fetches a user by ID. Satisfied by repository.UserRepository.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth validates the JWT and loads the full user into the context.
// Checks Authorization header first (for API clients), then falls back to
// cookie (for web). Requests without a valid token are rejected.
func RequireAuth(jwtSecret string, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, errCode, errMsg := authenticate(r, jwtSecret, users)
			if user == nil {
				httputil.WriteUnauthorizedWithCode(w, errCode, errMsg)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth loads the user into the context when a valid token is
// present, and lets the request through anonymously when there is none.
// A token that is present but invalid is still rejected, so clients
// notice expiry instead of silently losing their identity.
func OptionalAuth(jwtSecret string, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if extractToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, errCode, errMsg := authenticate(r, jwtSecret, users)
			if user == nil {
				httputil.WriteUnauthorizedWithCode(w, errCode, errMsg)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate parses the JWT and resolves the account behind it.
// Returns nil plus an error code/message when the request carries no
// usable identity.
func authenticate(r *http.Request, jwtSecret string, users UserLoader) (*model.User, string, string) {
	tokenString := extractToken(r)
	if tokenString == "" {
		return nil, model.CodeAuthRequired, "Missing authentication token"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})

	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return nil, model.CodeTokenExpired, "Access token has expired"
		}
		return nil, model.CodeTokenInvalid, "Invalid authentication token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, model.CodeTokenInvalid, "Invalid authentication token"
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, model.CodeTokenInvalid, "Invalid token claims"
	}

	user, err := users.GetByID(r.Context(), int64(userIDFloat))
	if err != nil {
		log.Printf("[Auth] user lookup failed: id=%d err=%v", int64(userIDFloat), err)
		return nil, model.CodeTokenInvalid, "Account no longer exists"
	}

	return user, "", ""
}

// extractToken pulls the JWT from the Authorization header or the
// access_token cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// GetUserFromContext extracts the authenticated user from the request context.
// Returns the user and true if found, or nil and false if not found.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserKey).(*model.User)
	return user, ok
}

// SessionToken returns the anonymous session token header, trimmed.
func SessionToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SessionTokenHeader))
}
