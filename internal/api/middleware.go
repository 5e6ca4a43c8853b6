// Package api implements the NoteMesh REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey int

const userIDKey ctxKey = 0

// UserID returns the authenticated user's id from the request context.
func UserID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDKey).(uuid.UUID)
	return id, ok
}

// AuthMiddleware returns middleware that resolves the calling user.
// With enabled=true, requests must carry "Authorization: Bearer <jwt>"
// signed with the given HMAC secret; the token subject is the user id.
// With enabled=false (local development), the X-User-ID header is
// trusted instead.
func AuthMiddleware(enabled bool, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var raw string
			if enabled {
				auth := r.Header.Get("Authorization")
				if !strings.HasPrefix(auth, "Bearer ") {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				sub, err := parseSubject(strings.TrimPrefix(auth, "Bearer "), secret)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				raw = sub
			} else {
				raw = r.Header.Get("X-User-ID")
			}

			userID, err := uuid.Parse(raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseSubject(tokenString, secret string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
