// ABOUTME: Shared API key authentication for the HTTP surface
// ABOUTME: Extracts the bearer credential and compares it in constant time before any handler runs

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ExtractBearer pulls the bearer credential from an Authorization header
// value. Returns the credential and an error message (empty on success).
func ExtractBearer(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// KeyMatches compares a presented key against the expected one in constant
// time.
func KeyMatches(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// Middleware guards every wrapped handler with the single shared API key.
// When require is false the wrapped handler runs untouched.
func Middleware(apiKey string, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !require {
				next.ServeHTTP(w, r)
				return
			}

			token, errMsg := ExtractBearer(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}
			if !KeyMatches(token, apiKey) {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
