package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDecideServer(t *testing.T, handler http.HandlerFunc) *Decide {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDecide(srv.URL, "phc_project", "phx_personal")
}

func TestDecide_GetFlag_SendsIdentityAndTargeting(t *testing.T) {
	var got decideRequest
	d := newDecideServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/decide/", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("v"))
		assert.Equal(t, "Bearer phx_personal", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "posthog-openfeature-go/"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"featureFlags": map[string]any{"beta": "treatment"},
		})
	})

	value, err := d.GetFlag(context.Background(), FlagQuery{
		Key:              "beta",
		DistinctID:       "u1",
		Groups:           map[string]string{"account": "g1"},
		PersonProperties: map[string]any{"email": "a@example.com"},
		GroupProperties:  map[string]any{"account": map[string]any{"plan": "pro"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "treatment", value)

	assert.Equal(t, "phc_project", got.APIKey)
	assert.Equal(t, "u1", got.DistinctID)
	assert.Equal(t, map[string]string{"account": "g1"}, got.Groups)
	assert.Equal(t, map[string]any{"email": "a@example.com"}, got.PersonProperties)
	assert.Equal(t, map[string]map[string]any{"account": {"plan": "pro"}}, got.GroupProperties)
}

func TestDecide_GetFlag_UnknownFlagIsNil(t *testing.T) {
	d := newDecideServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"featureFlags":{"other":true}}`))
	})

	value, err := d.GetFlag(context.Background(), FlagQuery{Key: "missing", DistinctID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestDecide_GetFlag_ComputeErrorsAreErrors(t *testing.T) {
	d := newDecideServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"featureFlags":{},"errorsWhileComputingFlags":true}`))
	})

	_, err := d.GetFlag(context.Background(), FlagQuery{Key: "beta", DistinctID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not compute flag beta")
}

func TestDecide_GetFlag_Non200(t *testing.T) {
	d := newDecideServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	})

	_, err := d.GetFlag(context.Background(), FlagQuery{Key: "beta", DistinctID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestDecide_LocalEvaluationUnsupported(t *testing.T) {
	d := NewDecide("http://127.0.0.1:0", "k", "p")

	_, err := d.GetFlag(context.Background(), FlagQuery{Key: "beta", DistinctID: "u1", OnlyEvaluateLocally: true})
	assert.ErrorIs(t, err, ErrLocalEvaluationUnsupported)
}

func TestDecide_GetPayload(t *testing.T) {
	d := newDecideServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"featureFlags":{"beta":true},"featureFlagPayloads":{"beta":"{\"mocked\":\"v\"}"}}`))
	})

	payload, err := d.GetPayload(context.Background(), PayloadQuery{
		FlagQuery:  FlagQuery{Key: "beta", DistinctID: "u1"},
		MatchValue: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"mocked":"v"}`, payload)

	payload, err = d.GetPayload(context.Background(), PayloadQuery{
		FlagQuery: FlagQuery{Key: "other", DistinctID: "u1"},
	})
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestDecide_Capture(t *testing.T) {
	var got map[string]any
	d := newDecideServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/capture/", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := d.Capture(context.Background(), Event{
		DistinctID: "u1",
		Name:       "$feature_flag_called",
		Properties: map[string]any{"$feature_flag": "beta"},
		Groups:     map[string]string{"account": "g1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "phc_project", got["api_key"])
	assert.Equal(t, "$feature_flag_called", got["event"])
	assert.Equal(t, "u1", got["distinct_id"])
	assert.NotEmpty(t, got["uuid"])
	props := got["properties"].(map[string]any)
	assert.Equal(t, "beta", props["$feature_flag"])
	assert.Equal(t, map[string]any{"account": "g1"}, props["$groups"])
}

func TestDecide_RespectsContextCancellation(t *testing.T) {
	d := newDecideServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"featureFlags":{"beta":true}}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.GetFlag(ctx, FlagQuery{Key: "beta", DistinctID: "u1"})
	assert.ErrorIs(t, err, context.Canceled)
}
