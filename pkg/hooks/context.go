package hooks

import (
	"context"
	"maps"

	"github.com/open-feature/go-sdk/openfeature"
)

// ContextHook adds a fixed set of attributes to every evaluation context,
// for example the service name or deployment environment. Attributes the
// caller already set are left alone.
type ContextHook struct {
	openfeature.UnimplementedHook
	attrs map[string]any
}

var _ openfeature.Hook = (*ContextHook)(nil)

// NewContextHook creates a ContextHook. attrs is copied.
func NewContextHook(attrs map[string]any) *ContextHook {
	return &ContextHook{attrs: maps.Clone(attrs)}
}

// Before returns the caller's context with the static attributes filled in.
func (h *ContextHook) Before(_ context.Context, hc openfeature.HookContext, _ openfeature.HookHints) (*openfeature.EvaluationContext, error) {
	if len(h.attrs) == 0 {
		return nil, nil
	}

	ec := hc.EvaluationContext()
	merged := make(map[string]any, len(h.attrs)+len(ec.Attributes()))
	maps.Copy(merged, h.attrs)
	maps.Copy(merged, ec.Attributes())

	out := openfeature.NewEvaluationContext(ec.TargetingKey(), merged)
	return &out, nil
}
