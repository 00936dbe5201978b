package auth

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrorWriter writes an authentication failure response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

// Authenticator checks bearer tokens against a single bcrypt hash.
//
// bcrypt is slow on purpose, so tokens that verified once are remembered by
// their SHA-256 digest for the lifetime of the Authenticator.
type Authenticator struct {
	hash     string
	logger   zerolog.Logger
	onError  ErrorWriter
	verified sync.Map // [sha256.Size]byte -> struct{}
}

// NewAuthenticator creates an Authenticator for hash. An empty hash disables
// authentication. onError may be nil, in which case http.Error is used.
func NewAuthenticator(hash string, logger zerolog.Logger, onError ErrorWriter) *Authenticator {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Authenticator{hash: hash, logger: logger, onError: onError}
}

// Enabled reports whether requests must carry a token.
func (a *Authenticator) Enabled() bool {
	return a.hash != ""
}

// Authenticate reports whether authHeader carries a valid bearer token. The
// returned message explains a failure.
func (a *Authenticator) Authenticate(authHeader string) (bool, string) {
	if !a.Enabled() {
		return true, ""
	}

	token := ExtractBearerToken(authHeader)
	if token == "" {
		return false, "missing bearer token"
	}

	digest := sha256.Sum256([]byte(token))
	if _, ok := a.verified.Load(digest); ok {
		return true, ""
	}
	if !VerifyAPIKey(token, a.hash) {
		return false, "invalid token"
	}
	a.verified.Store(digest, struct{}{})
	return true, ""
}

// RequireAuth is a middleware that requires a valid bearer token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, msg := a.Authenticate(r.Header.Get("Authorization"))
		if !ok {
			a.logger.Warn().
				Str("ip", ClientIP(r)).
				Str("path", r.URL.Path).
				Str("reason", msg).
				Msg("rejected unauthenticated request")
			a.onError(w, r, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client address from the request, preferring the
// first X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
