package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T, key string, logs *bytes.Buffer) *Authenticator {
	t.Helper()
	hash, err := hashWithCost(key, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashWithCost() failed: %v", err)
	}
	return NewAuthenticator(hash, zerolog.New(logs), nil)
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuthenticator(t, "phof_secret", &bytes.Buffer{})

	tests := []struct {
		header string
		wantOK bool
		msg    string
	}{
		{"", false, "missing bearer token"},
		{"Bearer wrong", false, "invalid token"},
		{"Bearer phof_secret", true, ""},
		// served from the verified cache the second time
		{"bearer phof_secret", true, ""},
	}

	for _, tt := range tests {
		ok, msg := a.Authenticate(tt.header)
		if ok != tt.wantOK {
			t.Errorf("Authenticate(%q) ok = %v, want %v", tt.header, ok, tt.wantOK)
		}
		if !tt.wantOK && msg != tt.msg {
			t.Errorf("Authenticate(%q) msg = %q, want %q", tt.header, msg, tt.msg)
		}
	}
}

func TestAuthenticate_Disabled(t *testing.T) {
	a := NewAuthenticator("", zerolog.Nop(), nil)

	if a.Enabled() {
		t.Error("Expected authenticator to be disabled without a hash")
	}
	if ok, _ := a.Authenticate(""); !ok {
		t.Error("Expected disabled authenticator to accept any request")
	}
}

func TestRequireAuth(t *testing.T) {
	var logs bytes.Buffer
	a := newTestAuthenticator(t, "phof_secret", &logs)
	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/flags/x/evaluate", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.195, 70.41.3.18")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing bearer token") {
		t.Errorf("Expected missing token message, got %s", rec.Body.String())
	}
	if !strings.Contains(logs.String(), `"ip":"203.0.113.195"`) {
		t.Errorf("Expected client ip in logs, got %s", logs.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/flags/x/evaluate", nil)
	req.Header.Set("Authorization", "Bearer phof_secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestRequireAuth_CustomErrorWriter(t *testing.T) {
	hash, err := hashWithCost("k", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashWithCost() failed: %v", err)
	}

	var gotStatus int
	a := NewAuthenticator(hash, zerolog.Nop(), func(w http.ResponseWriter, _ *http.Request, status int, _ string) {
		gotStatus = status
		w.WriteHeader(status)
	})

	rec := httptest.NewRecorder()
	a.RequireAuth(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if gotStatus != http.StatusUnauthorized {
		t.Errorf("Expected error writer to see 401, got %d", gotStatus)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for wins", map[string]string{"X-Forwarded-For": "203.0.113.195", "X-Real-IP": "198.51.100.42"}, "192.0.2.1:54321", "203.0.113.195"},
		{"first forwarded entry", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "192.0.2.1:54321", "203.0.113.195"},
		{"real ip over remote", map[string]string{"X-Real-IP": "198.51.100.42"}, "192.0.2.1:54321", "198.51.100.42"},
		{"remote addr", nil, "192.0.2.1:54321", "192.0.2.1:54321"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			req.RemoteAddr = tt.remote
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
