package hooks

import (
	"context"
	"fmt"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/rs/zerolog"
)

// LoggingHook logs each evaluation with zerolog: the request at debug level,
// the result at debug level and failures at warn level.
type LoggingHook struct {
	openfeature.UnimplementedHook
	logger zerolog.Logger
}

var _ openfeature.Hook = (*LoggingHook)(nil)

// NewLoggingHook creates a LoggingHook writing to logger.
func NewLoggingHook(logger zerolog.Logger) *LoggingHook {
	return &LoggingHook{logger: logger.With().Str("component", "openfeature").Logger()}
}

// Before logs the flag being evaluated and, unless the ignoreData hint is
// set, the evaluation context.
func (h *LoggingHook) Before(_ context.Context, hc openfeature.HookContext, hints openfeature.HookHints) (*openfeature.EvaluationContext, error) {
	ev := h.event(h.logger.Debug(), hc)
	if !ignoreData(hints) {
		ec := hc.EvaluationContext()
		ev = ev.Str("targeting_key", ec.TargetingKey()).Interface("attributes", ec.Attributes())
	}
	ev.Msg("evaluating flag")
	return nil, nil
}

// After logs the resolved value, variant and reason.
func (h *LoggingHook) After(_ context.Context, hc openfeature.HookContext, details openfeature.InterfaceEvaluationDetails, hints openfeature.HookHints) error {
	ev := h.event(h.logger.Debug(), hc).
		Str("reason", string(details.Reason)).
		Str("variant", details.Variant)
	if !ignoreData(hints) {
		ev = ev.Interface("value", details.Value)
	}
	ev.Msg("flag evaluated")
	return nil
}

// Error logs a failed evaluation.
func (h *LoggingHook) Error(_ context.Context, hc openfeature.HookContext, err error, _ openfeature.HookHints) {
	h.event(h.logger.Warn(), hc).
		Err(err).
		Str("error_code", string(errorCode(err))).
		Msg("flag evaluation failed")
}

func (h *LoggingHook) event(ev *zerolog.Event, hc openfeature.HookContext) *zerolog.Event {
	return ev.
		Str("flag_key", hc.FlagKey()).
		Str("flag_type", fmt.Sprint(hc.FlagType())).
		Str("provider", hc.ProviderMetadata().Name)
}
