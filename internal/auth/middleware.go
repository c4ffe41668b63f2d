// Package auth guards the HTTP API with HS256 access tokens issued by the
// deployment's auth service. The service only checks that a caller is
// authenticated; it never authorises individual playlists.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type TokenClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type ctxClaimsKey struct{}

// Claims returns the validated claims attached by Middleware.
func Claims(ctx context.Context) (*TokenClaims, bool) {
	c, ok := ctx.Value(ctxClaimsKey{}).(*TokenClaims)
	return c, ok
}

// Subject returns the authenticated user id, or "".
func Subject(ctx context.Context) string {
	if c, ok := Claims(ctx); ok {
		return c.UserID
	}
	return ""
}

// Middleware accepts a bearer token from the Authorization header or, for
// browsers and websocket upgrades, from cookieName. On success it sets
// X-User-Id for downstream handlers.
func Middleware(secret []byte, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Never trust an identity the client supplied itself.
			r.Header.Del("X-User-Id")

			raw, ok := bearerToken(r, cookieName)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			claims := &TokenClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.TokenType != "access" || claims.UserID == "" {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r.Header.Set("X-User-Id", claims.UserID)

			ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, cookieName string) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
