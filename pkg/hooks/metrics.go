package hooks

import (
	"context"
	"fmt"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsHook counts evaluations and failures in Prometheus.
type MetricsHook struct {
	openfeature.UnimplementedHook
	evaluations *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

var _ openfeature.Hook = (*MetricsHook)(nil)

// NewMetricsHook creates a MetricsHook and registers its collectors with reg.
func NewMetricsHook(reg prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openfeature_evaluations_total",
				Help: "Total feature flag evaluations",
			},
			[]string{"flag_key", "reason"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "openfeature_evaluation_errors_total",
				Help: "Total failed feature flag evaluations",
			},
			[]string{"flag_key", "error_code"},
		),
	}

	for _, c := range []prometheus.Collector{h.evaluations, h.errors} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register evaluation metrics: %w", err)
		}
	}
	return h, nil
}

// After counts a completed evaluation by reason.
func (h *MetricsHook) After(_ context.Context, hc openfeature.HookContext, details openfeature.InterfaceEvaluationDetails, _ openfeature.HookHints) error {
	h.evaluations.WithLabelValues(hc.FlagKey(), reasonOrUnknown(details.Reason)).Inc()
	if details.ErrorCode != "" {
		h.errors.WithLabelValues(hc.FlagKey(), string(details.ErrorCode)).Inc()
	}
	return nil
}

// Error counts a failed evaluation by error code.
func (h *MetricsHook) Error(_ context.Context, hc openfeature.HookContext, err error, _ openfeature.HookHints) {
	h.errors.WithLabelValues(hc.FlagKey(), string(errorCode(err))).Inc()
}
