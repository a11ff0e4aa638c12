package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenMiddleware guards the API with a static bearer token. An empty
// token disables the check (local-only deployments).
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("Authorization")
			if strings.HasPrefix(got, "Bearer ") {
				got = got[7:]
			} else {
				// WebSocket clients cannot set headers from a browser.
				got = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
