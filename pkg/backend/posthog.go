package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"
)

// sdkClient is the subset of posthog.Client the adapter calls.
type sdkClient interface {
	GetFeatureFlag(posthog.FeatureFlagPayload) (interface{}, error)
	GetFeatureFlagPayload(posthog.FeatureFlagPayload) (string, error)
	GetFeatureFlags() ([]posthog.FeatureFlag, error)
	GetAllFlags(posthog.FeatureFlagPayloadNoKey) (map[string]interface{}, error)
	Enqueue(posthog.Message) error
	Close() error
}

// PostHogConfig holds what is needed to build a posthog-go client.
type PostHogConfig struct {
	APIKey         string        // project API key, used for events and remote evaluation
	PersonalAPIKey string        // personal API key, enables local evaluation
	Endpoint       string        // PostHog host, empty for the SDK default
	PollInterval   time.Duration // rule set refresh interval for local evaluation
	Logger         zerolog.Logger
}

// PostHog is a Backend over the posthog-go SDK.
//
// The SDK answers false for a flag it does not know, so GetFlag checks the
// flag exists before asking for its value.
type PostHog struct {
	client sdkClient
	// definitions is set when the client polls flag definitions, which
	// needs a personal API key.
	definitions bool
}

// NewPostHog builds a posthog-go client from cfg and wraps it.
func NewPostHog(cfg PostHogConfig) (*PostHog, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("posthog api key is required")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint:                           cfg.Endpoint,
		PersonalApiKey:                     cfg.PersonalAPIKey,
		DefaultFeatureFlagsPollingInterval: cfg.PollInterval,
		Logger:                             NewZerologLogger(cfg.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}
	return &PostHog{client: client, definitions: cfg.PersonalAPIKey != ""}, nil
}

// WrapPostHog adapts an already constructed SDK client. Clients built
// without a personal API key are handled through the all-flags lookup.
func WrapPostHog(client posthog.Client) *PostHog {
	return &PostHog{client: client, definitions: true}
}

// GetFlag evaluates one flag through the SDK and returns nil when PostHog
// has no flag with that key. The SDK's own $feature_flag_called event is
// disabled; the provider emits it instead.
//
// A flag present in the polled definitions is evaluated directly. Anything
// else goes through GetAllFlags, where a missing key means unknown.
func (p *PostHog) GetFlag(_ context.Context, q FlagQuery) (any, error) {
	payload := toSDKPayload(q)
	if p.definitions && p.defined(q.Key) {
		return p.client.GetFeatureFlag(payload)
	}

	flags, err := p.client.GetAllFlags(posthog.FeatureFlagPayloadNoKey{
		DistinctId:            payload.DistinctId,
		Groups:                payload.Groups,
		PersonProperties:      payload.PersonProperties,
		GroupProperties:       payload.GroupProperties,
		OnlyEvaluateLocally:   payload.OnlyEvaluateLocally,
		SendFeatureFlagEvents: payload.SendFeatureFlagEvents,
	})
	if err != nil {
		return nil, err
	}
	value, ok := flags[q.Key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

// defined reports whether key is in the locally polled definitions. A
// failed definitions lookup counts as not defined.
func (p *PostHog) defined(key string) bool {
	flags, err := p.client.GetFeatureFlags()
	if err != nil {
		return false
	}
	for _, f := range flags {
		if f.Key == key {
			return true
		}
	}
	return false
}

// GetPayload fetches the JSON payload attached to the flag. The SDK returns
// payloads as raw JSON strings; an empty string means there is none.
func (p *PostHog) GetPayload(_ context.Context, q PayloadQuery) (any, error) {
	raw, err := p.client.GetFeatureFlagPayload(toSDKPayload(q.FlagQuery))
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	return raw, nil
}

// Capture enqueues the event; delivery happens on the SDK's batch loop.
func (p *PostHog) Capture(_ context.Context, e Event) error {
	msg := posthog.Capture{
		Uuid:       uuid.NewString(),
		DistinctId: e.DistinctID,
		Event:      e.Name,
		Properties: posthog.Properties(e.Properties),
	}
	if len(e.Groups) > 0 {
		msg.Groups = make(posthog.Groups, len(e.Groups))
		for k, v := range e.Groups {
			msg.Groups[k] = v
		}
	}
	return p.client.Enqueue(msg)
}

// Close flushes queued events and stops the flag poller.
func (p *PostHog) Close() error {
	return p.client.Close()
}

func toSDKPayload(q FlagQuery) posthog.FeatureFlagPayload {
	sendEvents := false
	payload := posthog.FeatureFlagPayload{
		Key:                   q.Key,
		DistinctId:            q.DistinctID,
		OnlyEvaluateLocally:   q.OnlyEvaluateLocally,
		SendFeatureFlagEvents: &sendEvents,
	}

	if len(q.Groups) > 0 {
		payload.Groups = make(posthog.Groups, len(q.Groups))
		for k, v := range q.Groups {
			payload.Groups[k] = v
		}
	}
	if len(q.PersonProperties) > 0 {
		payload.PersonProperties = posthog.Properties(q.PersonProperties)
	}
	if gp := splitGroupProperties(q.Groups, q.GroupProperties); gp != nil {
		payload.GroupProperties = make(map[string]posthog.Properties, len(gp))
		for k, v := range gp {
			payload.GroupProperties[k] = posthog.Properties(v)
		}
	}
	return payload
}

// ZerologLogger implements posthog.Logger on top of zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger tags every record with component=posthog.
func NewZerologLogger(l zerolog.Logger) ZerologLogger {
	return ZerologLogger{log: l.With().Str("component", "posthog").Logger()}
}

func (z ZerologLogger) Debugf(format string, args ...interface{}) {
	z.log.Debug().Msgf(format, args...)
}

func (z ZerologLogger) Logf(format string, args ...interface{}) {
	z.log.Info().Msgf(format, args...)
}

func (z ZerologLogger) Warnf(format string, args ...interface{}) {
	z.log.Warn().Msgf(format, args...)
}

func (z ZerologLogger) Errorf(format string, args ...interface{}) {
	z.log.Error().Msgf(format, args...)
}
