package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_Disabled(t *testing.T) {
	auth := NewAuth("")
	if auth.Enabled() {
		t.Fatal("Expected auth disabled without password")
	}

	rec := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestAuth_Middleware(t *testing.T) {
	auth := NewAuth("sekret")
	handler := auth.Middleware(okHandler())

	tests := []struct {
		name   string
		path   string
		cookie string
		want   int
	}{
		{"preview page is public", "/", "", http.StatusOK},
		{"login is public", "/auth/login", "", http.StatusOK},
		{"no cookie", "/api/view", "", http.StatusUnauthorized},
		{"wrong token", "/api/view", "true", http.StatusUnauthorized},
		{"valid token", "/api/view", auth.Token(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestAuth_CheckPassword(t *testing.T) {
	auth := NewAuth("sekret")
	if !auth.CheckPassword("sekret") {
		t.Error("Expected correct password to pass")
	}
	if auth.CheckPassword("Sekret") || auth.CheckPassword("") {
		t.Error("Expected wrong passwords to fail")
	}
	if NewAuth("sekret").Token() == auth.Token() {
		t.Error("Expected a fresh token per instance")
	}
}
