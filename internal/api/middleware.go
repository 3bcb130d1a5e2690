/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication (which also loads the current user row so handlers see a
 * fresh subscription flag) and the admin gate for catalog management.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 */

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
)

// userContextKey is a custom type for the context key to avoid collisions.
type userContextKey string

const currentUserKey userContextKey = "currentUser"

// AuthMiddleware validates the bearer token and loads the authenticated user
// into the request context.
func AuthMiddleware(tokens *TokenManager, repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Not authorized, no token", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.ParseUserID(tokenString)
			if err != nil {
				http.Error(w, "Not authorized, token failed", http.StatusUnauthorized)
				return
			}

			// Load the user row each request so role and subscription state
			// reflect the database, not a stale token.
			user, err := repo.FindUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					http.Error(w, "Not authorized, user not found", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects requests whose authenticated user is not an admin. Must
// be mounted inside AuthMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok || !user.IsAdmin() {
			http.Error(w, "Not authorized as an admin", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUser retrieves the authenticated user from the request context.
func CurrentUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(currentUserKey).(*domain.User)
	return user, ok
}
