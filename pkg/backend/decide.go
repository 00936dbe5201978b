package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tapico/go-posthog-openfeature/internal/version"
)

// DefaultHost is the PostHog cloud ingestion host.
const DefaultHost = "https://us.i.posthog.com"

// ErrLocalEvaluationUnsupported is returned by Decide when a query asks for
// local-only evaluation.
var ErrLocalEvaluationUnsupported = errors.New("decide backend does not support local evaluation")

// Decide is a remote-only Backend talking to the PostHog HTTP API.
type Decide struct {
	BaseURL        string
	APIKey         string
	PersonalAPIKey string
	HTTPClient     *http.Client
}

// NewDecide creates a Decide backend. An empty baseURL selects DefaultHost.
func NewDecide(baseURL, apiKey, personalAPIKey string) *Decide {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	return &Decide{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		PersonalAPIKey: personalAPIKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type decideRequest struct {
	APIKey           string                    `json:"api_key"`
	DistinctID       string                    `json:"distinct_id"`
	Groups           map[string]string         `json:"groups,omitempty"`
	PersonProperties map[string]any            `json:"person_properties,omitempty"`
	GroupProperties  map[string]map[string]any `json:"group_properties,omitempty"`
}

type decideResponse struct {
	FeatureFlags              map[string]any `json:"featureFlags"`
	FeatureFlagPayloads       map[string]any `json:"featureFlagPayloads"`
	ErrorsWhileComputingFlags bool           `json:"errorsWhileComputingFlags"`
}

// GetFlag asks /decide for all flags of the subject and picks q.Key.
func (d *Decide) GetFlag(ctx context.Context, q FlagQuery) (any, error) {
	resp, err := d.decide(ctx, q)
	if err != nil {
		return nil, err
	}

	value, ok := resp.FeatureFlags[q.Key]
	if !ok {
		if resp.ErrorsWhileComputingFlags {
			return nil, fmt.Errorf("posthog could not compute flag %s", q.Key)
		}
		return nil, nil
	}
	return value, nil
}

// GetPayload asks /decide again with the same identity and returns the
// payload for q.Key, which is usually a JSON encoded string.
func (d *Decide) GetPayload(ctx context.Context, q PayloadQuery) (any, error) {
	resp, err := d.decide(ctx, q.FlagQuery)
	if err != nil {
		return nil, err
	}

	payload, ok := resp.FeatureFlagPayloads[q.Key]
	if !ok || payload == nil {
		return nil, nil
	}
	return payload, nil
}

// Capture posts a single event to /capture/.
func (d *Decide) Capture(ctx context.Context, e Event) error {
	props := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		props[k] = v
	}
	if len(e.Groups) > 0 {
		props["$groups"] = e.Groups
	}

	body, err := json.Marshal(map[string]any{
		"api_key":     d.APIKey,
		"uuid":        uuid.NewString(),
		"event":       e.Name,
		"distinct_id": e.DistinctID,
		"properties":  props,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/capture/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("API error (status %d): %s", res.StatusCode, string(bodyBytes))
	}
	return nil
}

// Close releases idle connections. Decide holds no queue to flush.
func (d *Decide) Close() error {
	d.HTTPClient.CloseIdleConnections()
	return nil
}

func (d *Decide) decide(ctx context.Context, q FlagQuery) (*decideResponse, error) {
	if q.OnlyEvaluateLocally {
		return nil, ErrLocalEvaluationUnsupported
	}

	body, err := json.Marshal(decideRequest{
		APIKey:           d.APIKey,
		DistinctID:       q.DistinctID,
		Groups:           q.Groups,
		PersonProperties: q.PersonProperties,
		GroupProperties:  splitGroupProperties(q.Groups, q.GroupProperties),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/decide/?v=3", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if d.PersonalAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.PersonalAPIKey)
	}

	res, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("API error (status %d): %s", res.StatusCode, string(bodyBytes))
	}

	var out decideResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
