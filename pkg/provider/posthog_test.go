package provider

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const localEvaluationBody = `{
	"flags": [{
		"id": 1,
		"name": "Beta",
		"key": "beta",
		"active": true,
		"filters": {"groups": [{"properties": [], "rollout_percentage": 100}]}
	}],
	"group_type_mapping": {},
	"cohorts": {}
}`

const remoteFlagsBody = `{
	"flags": {"beta": {"key": "beta", "enabled": true, "reason": {"code": "condition_match"}, "metadata": {"id": 1, "version": 1}}},
	"featureFlags": {"beta": true},
	"featureFlagPayloads": {},
	"errorsWhileComputingFlags": false
}`

// newPostHogServer serves the endpoints posthog-go calls for flag
// definitions, remote evaluation and event batches.
func newPostHogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "local_evaluation"):
			_, _ = w.Write([]byte(localEvaluationBody))
		case strings.HasPrefix(r.URL.Path, "/flags"), strings.HasPrefix(r.URL.Path, "/decide"):
			_, _ = w.Write([]byte(remoteFlagsBody))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPostHogProvider(t *testing.T) *Provider {
	t.Helper()
	srv := newPostHogServer(t)
	p, err := New(Configuration{
		APIKey:         "phc_test",
		PersonalAPIKey: "phx_test",
		Host:           srv.URL,
		PollInterval:   time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostHogConfiguration_UnknownFlagFallsBack(t *testing.T) {
	p := newPostHogProvider(t)
	ec := EvaluationContext{TargetingKey: "u1"}

	b, err := p.ResolveBoolean(ctx, "does-not-exist", true, ec)
	require.NoError(t, err)
	assert.Equal(t, ResolutionDetails[bool]{
		Value:        true,
		Reason:       ReasonDefault,
		ErrorCode:    ErrorCodeFlagNotFound,
		ErrorMessage: "flag does-not-exist not found",
	}, b)

	s, err := p.ResolveString(ctx, "does-not-exist", "fallback", ec)
	require.NoError(t, err)
	assert.Equal(t, "fallback", s.Value)
	assert.Equal(t, ErrorCodeFlagNotFound, s.ErrorCode)

	n, err := p.ResolveNumber(ctx, "does-not-exist", 4, ec)
	require.NoError(t, err)
	assert.Equal(t, 4.0, n.Value)
	assert.Equal(t, ErrorCodeFlagNotFound, n.ErrorCode)

	o, err := p.ResolveObject(ctx, "does-not-exist", map[string]any{"d": "v"}, ec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"d": "v"}, o.Value)
	assert.Equal(t, ReasonDefault, o.Reason)
	assert.Equal(t, ErrorCodeFlagNotFound, o.ErrorCode)
}

func TestPostHogConfiguration_KnownFlagMatches(t *testing.T) {
	p := newPostHogProvider(t)

	b, err := p.ResolveBoolean(ctx, "beta", false, EvaluationContext{TargetingKey: "u1"})
	require.NoError(t, err)
	assert.True(t, b.Value)
	assert.Equal(t, ReasonTargetingMatch, b.Reason)
	assert.Empty(t, b.ErrorCode)
}
