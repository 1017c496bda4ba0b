package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BasicAuth gates every request behind a shared password. The username is
// ignored; a Bearer token carrying the password is accepted too so curl
// scripts do not need to base64 anything. An empty password disables the
// gate.
func BasicAuth(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorized(r, password) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="motiond"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func authorized(r *http.Request, password string) bool {
	if _, pass, ok := r.BasicAuth(); ok {
		return subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(password)) == 1
	}
	return false
}
