package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(password string) http.Handler {
	return BasicAuth(password)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestBasicAuthAcceptsPassword(t *testing.T) {
	handler := authHandler("hunter2")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("anyone", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid basic auth rejected: %d", rec.Code)
	}
}

func TestBasicAuthAcceptsBearer(t *testing.T) {
	handler := authHandler("hunter2")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid bearer token rejected: %d", rec.Code)
	}
}

func TestBasicAuthRejects(t *testing.T) {
	handler := authHandler("hunter2")

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no credentials", func(*http.Request) {}},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("anyone", "wrong") }},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Digest abc") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("got %d, want 401", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestBasicAuthDisabledWithoutPassword(t *testing.T) {
	handler := authHandler("")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty password should disable the gate: %d", rec.Code)
	}
}
