package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/rs/zerolog"

	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
)

// Provider resolves feature flags through a PostHog backend.
//
// A Provider is safe for concurrent use. It holds no mutable state besides
// the backend handle, whose own caching and polling are internal to it.
type Provider struct {
	backend         backend.Backend
	evaluateLocally bool
	sendEvents      bool
	logger          zerolog.Logger
	hooks           []openfeature.Hook

	closeOnce sync.Once
	closeErr  error
}

// Option customises a Provider.
type Option func(*Provider)

// WithLogger sets the provider logger. A logger attached to the evaluation
// context with zerolog's WithContext takes precedence per call.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithHooks registers provider-level OpenFeature hooks.
func WithHooks(hooks ...openfeature.Hook) Option {
	return func(p *Provider) { p.hooks = append(p.hooks, hooks...) }
}

// New creates a Provider from src, which must be a PrebuiltClient or a
// Configuration (value or pointer).
//
// Returns a *ConfigurationError when src is nil, when a PrebuiltClient has
// no backend, or when a Configuration lacks its API keys. No evaluation can
// happen before New succeeds.
func New(src Source, opts ...Option) (*Provider, error) {
	p := &Provider{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}

	switch s := src.(type) {
	case PrebuiltClient:
		return p.fromPrebuilt(s)
	case *PrebuiltClient:
		if s == nil {
			return nil, errMissingSource()
		}
		return p.fromPrebuilt(*s)
	case Configuration:
		return p.fromConfiguration(s)
	case *Configuration:
		if s == nil {
			return nil, errMissingSource()
		}
		return p.fromConfiguration(*s)
	case nil:
		return nil, errMissingSource()
	default:
		return nil, &ConfigurationError{Message: fmt.Sprintf("unsupported provider source %T", src)}
	}
}

func errMissingSource() error {
	return &ConfigurationError{Message: "either a prebuilt client or a configuration is required"}
}

func (p *Provider) fromPrebuilt(s PrebuiltClient) (*Provider, error) {
	if s.Backend == nil {
		return nil, &ConfigurationError{Field: "Backend", Message: "prebuilt client must not be nil"}
	}
	p.backend = s.Backend
	p.evaluateLocally = s.EvaluateLocally
	p.sendEvents = s.SendFeatureFlagEvents
	return p, nil
}

func (p *Provider) fromConfiguration(c Configuration) (*Provider, error) {
	if c.APIKey == "" {
		return nil, &ConfigurationError{Field: "APIKey", Message: "project API key is required"}
	}
	if c.PersonalAPIKey == "" {
		return nil, &ConfigurationError{Field: "PersonalAPIKey", Message: "personal API key is required"}
	}

	b, err := backend.NewPostHog(backend.PostHogConfig{
		APIKey:         c.APIKey,
		PersonalAPIKey: c.PersonalAPIKey,
		Endpoint:       c.Host,
		PollInterval:   c.PollInterval,
		Logger:         p.logger,
	})
	if err != nil {
		return nil, &ConfigurationError{Message: "failed to build posthog client", Err: err}
	}

	p.backend = b
	p.evaluateLocally = c.EvaluateLocally
	p.sendEvents = c.SendFeatureFlagEvents
	return p, nil
}

// Metadata identifies the provider.
func (p *Provider) Metadata() openfeature.Metadata {
	return openfeature.Metadata{Name: Name}
}

// Hooks returns the hooks registered with WithHooks.
func (p *Provider) Hooks() []openfeature.Hook {
	return p.hooks
}

// EvaluatesLocally reports whether lookups are restricted to the local rule set.
func (p *Provider) EvaluatesLocally() bool {
	return p.evaluateLocally
}

// Close flushes pending analytics events and shuts the backend down.
// Calls after the first return the first call's result.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.backend.Close()
	})
	return p.closeErr
}

// ResolveBoolean resolves a boolean flag.
//
// Backend failures, unknown flags and a missing targeting key return the
// default with an error code and a nil error. A non-boolean flag value
// returns a *TypeMismatchError; an invalid context a *ValidationError.
func (p *Provider) ResolveBoolean(ctx context.Context, flagKey string, defaultValue bool, ec EvaluationContext) (ResolutionDetails[bool], error) {
	return resolveTyped(ctx, p, flagKey, defaultValue, ec, "boolean", func(v any) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	})
}

// ResolveString resolves a string (multivariate) flag. The value is also
// reported as the variant.
func (p *Provider) ResolveString(ctx context.Context, flagKey string, defaultValue string, ec EvaluationContext) (ResolutionDetails[string], error) {
	return resolveTyped(ctx, p, flagKey, defaultValue, ec, "string", func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// ResolveNumber resolves a numeric flag. Any Go numeric type and
// json.Number are accepted.
func (p *Provider) ResolveNumber(ctx context.Context, flagKey string, defaultValue float64, ec EvaluationContext) (ResolutionDetails[float64], error) {
	return resolveTyped(ctx, p, flagKey, defaultValue, ec, "number", toFloat)
}

// ResolveObject resolves a flag to its JSON payload.
//
// The flag is looked up first; a false flag resolves to the default with
// reason DISABLED. Otherwise the payload is fetched with the same identity
// and targeting attributes. A missing payload returns the default
// unchanged. String payloads are decoded as JSON (*ParseError on failure);
// the decoded payload must be an object or an array (*TypeMismatchError).
func (p *Provider) ResolveObject(ctx context.Context, flagKey string, defaultValue any, ec EvaluationContext) (ResolutionDetails[any], error) {
	o, err := p.lookup(ctx, flagKey, ec)
	if err != nil {
		return failed(defaultValue, ErrorCodeInvalidContext, err), err
	}
	if !o.found() {
		return fallback(o, defaultValue), nil
	}
	if enabled, ok := o.value.(bool); ok && !enabled {
		return ResolutionDetails[any]{Value: defaultValue, Reason: ReasonDisabled}, nil
	}

	log := p.loggerFor(ctx)
	payload, err := p.getPayload(ctx, backend.PayloadQuery{FlagQuery: o.query, MatchValue: o.value})
	if err != nil {
		log.Warn().Err(err).Str("flag_key", flagKey).Msg("payload lookup failed, using default")
		return ResolutionDetails[any]{
			Value:        defaultValue,
			Reason:       ReasonError,
			ErrorCode:    ErrorCodeGeneral,
			ErrorMessage: err.Error(),
		}, nil
	}
	if payload == nil {
		log.Debug().Str("flag_key", flagKey).Msg("flag has no payload, using default")
		return ResolutionDetails[any]{Value: defaultValue, Reason: ReasonDefault}, nil
	}

	switch raw := payload.(type) {
	case string:
		payload, err = decodePayload(flagKey, []byte(raw))
	case []byte:
		payload, err = decodePayload(flagKey, raw)
	case json.RawMessage:
		payload, err = decodePayload(flagKey, raw)
	}
	if err != nil {
		return failed(defaultValue, ErrorCodeParseError, err), err
	}

	switch payload.(type) {
	case map[string]any, []any:
	default:
		err := &TypeMismatchError{FlagKey: flagKey, Actual: typeName(payload), Expected: "object"}
		return failed(defaultValue, ErrorCodeTypeMismatch, err), err
	}

	res := ResolutionDetails[any]{Value: payload, Reason: ReasonTargetingMatch}
	if s, ok := o.value.(string); ok {
		res.Variant = s
	}
	return res, nil
}

func decodePayload(flagKey string, raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &ParseError{FlagKey: flagKey, Err: err}
	}
	return v, nil
}

// resolveTyped runs the shared lookup and converts the resolved value.
func resolveTyped[T any](ctx context.Context, p *Provider, flagKey string, defaultValue T, ec EvaluationContext, expected string, convert func(any) (T, bool)) (ResolutionDetails[T], error) {
	o, err := p.lookup(ctx, flagKey, ec)
	if err != nil {
		return failed(defaultValue, ErrorCodeInvalidContext, err), err
	}
	if !o.found() {
		return fallback(o, defaultValue), nil
	}

	v, ok := convert(o.value)
	if !ok {
		err := &TypeMismatchError{FlagKey: flagKey, Actual: typeName(o.value), Expected: expected}
		return failed(defaultValue, ErrorCodeTypeMismatch, err), err
	}

	res := ResolutionDetails[T]{Value: v, Reason: ReasonTargetingMatch}
	if s, ok := o.value.(string); ok {
		res.Variant = s
	}
	return res, nil
}

// outcome is the result of a flag lookup before type conversion. A zero
// code means the flag was found and value holds it.
type outcome struct {
	query   backend.FlagQuery
	value   any
	reason  Reason
	code    ErrorCode
	message string
}

func (o outcome) found() bool { return o.code == "" }

func fallback[T any](o outcome, defaultValue T) ResolutionDetails[T] {
	return ResolutionDetails[T]{
		Value:        defaultValue,
		Reason:       o.reason,
		ErrorCode:    o.code,
		ErrorMessage: o.message,
	}
}

func failed[T any](defaultValue T, code ErrorCode, err error) ResolutionDetails[T] {
	return ResolutionDetails[T]{
		Value:        defaultValue,
		Reason:       ReasonError,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	}
}

// lookup translates the context and asks the backend for the flag.
//
// Only an invalid context returns an error. A missing targeting key, an
// unknown flag and a backend failure come back as an outcome with a code.
func (p *Provider) lookup(ctx context.Context, flagKey string, ec EvaluationContext) (outcome, error) {
	q, err := translateContext(ec)
	if err != nil {
		return outcome{}, err
	}
	q.Key = flagKey
	q.OnlyEvaluateLocally = p.evaluateLocally

	log := p.loggerFor(ctx)

	if q.DistinctID == "" {
		log.Debug().Str("flag_key", flagKey).Msg("no targeting key, using default")
		return outcome{
			query:   q,
			reason:  ReasonDefault,
			code:    ErrorCodeTargetingKeyMissing,
			message: "targeting key is required to evaluate PostHog flags",
		}, nil
	}

	value, err := p.getFlag(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("flag_key", flagKey).Msg("flag lookup failed, using default")
		return outcome{query: q, reason: ReasonError, code: ErrorCodeGeneral, message: err.Error()}, nil
	}
	if value == nil {
		log.Debug().Str("flag_key", flagKey).Msg("flag not found, using default")
		return outcome{
			query:   q,
			reason:  ReasonDefault,
			code:    ErrorCodeFlagNotFound,
			message: fmt.Sprintf("flag %s not found", flagKey),
		}, nil
	}

	if p.sendEvents {
		p.captureFlagCalled(ctx, q, value)
	}
	return outcome{query: q, value: value}, nil
}

// getFlag calls the backend, turning a panic into an error.
func (p *Provider) getFlag(ctx context.Context, q backend.FlagQuery) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	return p.backend.GetFlag(ctx, q)
}

func (p *Provider) getPayload(ctx context.Context, q backend.PayloadQuery) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	return p.backend.GetPayload(ctx, q)
}

func (p *Provider) captureFlagCalled(ctx context.Context, q backend.FlagQuery, value any) {
	err := p.backend.Capture(ctx, backend.Event{
		DistinctID: q.DistinctID,
		Name:       FlagCalledEvent,
		Properties: map[string]any{
			"$feature_flag":          q.Key,
			"$feature_flag_response": value,
		},
		Groups: q.Groups,
	})
	if err != nil {
		p.loggerFor(ctx).Warn().Err(err).Str("flag_key", q.Key).Msg("failed to capture flag called event")
	}
}

// loggerFor prefers a logger carried by ctx over the provider logger.
func (p *Provider) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &p.logger
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
