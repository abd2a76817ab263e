package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// Authenticator resolves an access token to a user ID.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uint, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// NewBearerMiddleware rejects requests without a live access token with 401.
func NewBearerMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w, "Authentication credentials were not provided.")
				return
			}

			userID, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				log.Printf("[AuthMiddleware] Invalid token for %s: %v", r.URL.Path, err)
				unauthorized(w, "Given token not valid for any token type")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
