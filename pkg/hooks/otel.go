package hooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-feature/go-sdk/openfeature"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tapico/go-posthog-openfeature/internal/version"
)

// Span event and attribute names, following the OpenTelemetry feature flag
// semantic conventions.
const (
	EvaluationEvent = "feature_flag.evaluation"

	AttrFlagKey      = "feature_flag.key"
	AttrProviderName = "feature_flag.provider.name"
	AttrVariant      = "feature_flag.variant"
	AttrValue        = "feature_flag.value"
	AttrReason       = "feature_flag.reason"
	AttrTargetingKey = "feature_flag.context.id"
)

const instrumentationName = "github.com/Tapico/go-posthog-openfeature/pkg/hooks"

// OTelHook records evaluations on the active span and counts them with
// OpenTelemetry metrics.
type OTelHook struct {
	openfeature.UnimplementedHook
	evaluations metric.Int64Counter
	failures    metric.Int64Counter
}

var _ openfeature.Hook = (*OTelHook)(nil)

type otelOptions struct {
	meterProvider metric.MeterProvider
}

// OTelOption configures an OTelHook.
type OTelOption func(*otelOptions)

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(o *otelOptions) { o.meterProvider = mp }
}

// NewOTelHook creates an OTelHook. Spans come from the evaluation context;
// counters are created on the global meter provider unless overridden.
func NewOTelHook(opts ...OTelOption) (*OTelHook, error) {
	o := otelOptions{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(version.Version))

	evaluations, err := meter.Int64Counter("feature_flag",
		metric.WithDescription("Number of times a feature flag is being used"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature_flag counter: %w", err)
	}
	failures, err := meter.Int64Counter("feature_flag_failed",
		metric.WithDescription("Number of times a feature flag evaluation failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature_flag_failed counter: %w", err)
	}

	return &OTelHook{evaluations: evaluations, failures: failures}, nil
}

// After adds an evaluation event to the active span and counts the
// evaluation. The resolved value is only recorded when there is no variant
// and the ignoreData hint is not set.
func (h *OTelHook) After(ctx context.Context, hc openfeature.HookContext, details openfeature.InterfaceEvaluationDetails, hints openfeature.HookHints) error {
	reason := reasonOrUnknown(details.Reason)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		attrs := []attribute.KeyValue{
			attribute.String(AttrFlagKey, hc.FlagKey()),
			attribute.String(AttrProviderName, hc.ProviderMetadata().Name),
			attribute.String(AttrReason, reason),
		}
		switch {
		case details.Variant != "":
			attrs = append(attrs, attribute.String(AttrVariant, details.Variant))
		case !ignoreData(hints):
			attrs = append(attrs, attribute.String(AttrValue, encodeValue(details.Value)))
		}
		if !ignoreData(hints) {
			if key := hc.EvaluationContext().TargetingKey(); key != "" {
				attrs = append(attrs, attribute.String(AttrTargetingKey, key))
			}
		}
		span.AddEvent(EvaluationEvent, trace.WithAttributes(attrs...))
	}

	if details.ErrorCode != "" {
		h.countFailure(ctx, hc, details.ErrorCode)
	}
	h.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag_key", hc.FlagKey()),
		attribute.String("reason", reason),
		attribute.String("provider_name", hc.ProviderMetadata().Name),
	))
	return nil
}

// Error records err on the active span and counts the failure.
func (h *OTelHook) Error(ctx context.Context, hc openfeature.HookContext, err error, _ openfeature.HookHints) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attribute.String(AttrFlagKey, hc.FlagKey())))
		span.SetStatus(codes.Error, err.Error())
	}
	h.countFailure(ctx, hc, errorCode(err))
}

func (h *OTelHook) countFailure(ctx context.Context, hc openfeature.HookContext, code openfeature.ErrorCode) {
	h.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag_key", hc.FlagKey()),
		attribute.String("error_code", string(code)),
		attribute.String("provider_name", hc.ProviderMetadata().Name),
	))
}

func encodeValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
