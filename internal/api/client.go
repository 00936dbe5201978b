package api

import (
	"context"

	"github.com/open-feature/go-sdk/openfeature"

	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// ClientEvaluator serves evaluations through an OpenFeature client, so the
// hooks registered with the SDK and the provider run for every request.
type ClientEvaluator struct {
	client *openfeature.Client
}

var _ Evaluator = (*ClientEvaluator)(nil)

func NewClientEvaluator(client *openfeature.Client) *ClientEvaluator {
	return &ClientEvaluator{client: client}
}

func (c *ClientEvaluator) ResolveBoolean(ctx context.Context, flagKey string, defaultValue bool, ec provider.EvaluationContext) (provider.ResolutionDetails[bool], error) {
	if err := ec.Validate(); err != nil {
		return invalidContext(defaultValue, err), err
	}
	d, _ := c.client.BooleanValueDetails(ctx, flagKey, defaultValue, toOpenFeature(ec))
	return fromDetails(d.Value, d.EvaluationDetails), nil
}

func (c *ClientEvaluator) ResolveString(ctx context.Context, flagKey string, defaultValue string, ec provider.EvaluationContext) (provider.ResolutionDetails[string], error) {
	if err := ec.Validate(); err != nil {
		return invalidContext(defaultValue, err), err
	}
	d, _ := c.client.StringValueDetails(ctx, flagKey, defaultValue, toOpenFeature(ec))
	return fromDetails(d.Value, d.EvaluationDetails), nil
}

func (c *ClientEvaluator) ResolveNumber(ctx context.Context, flagKey string, defaultValue float64, ec provider.EvaluationContext) (provider.ResolutionDetails[float64], error) {
	if err := ec.Validate(); err != nil {
		return invalidContext(defaultValue, err), err
	}
	d, _ := c.client.FloatValueDetails(ctx, flagKey, defaultValue, toOpenFeature(ec))
	return fromDetails(d.Value, d.EvaluationDetails), nil
}

func (c *ClientEvaluator) ResolveObject(ctx context.Context, flagKey string, defaultValue any, ec provider.EvaluationContext) (provider.ResolutionDetails[any], error) {
	if err := ec.Validate(); err != nil {
		return invalidContext(defaultValue, err), err
	}
	d, _ := c.client.ObjectValueDetails(ctx, flagKey, defaultValue, toOpenFeature(ec))
	return fromDetails(d.Value, d.EvaluationDetails), nil
}

// toOpenFeature carries the context through the attribute names the
// provider reads back in ContextFromFlattened.
func toOpenFeature(ec provider.EvaluationContext) openfeature.EvaluationContext {
	attrs := make(map[string]any, 3)
	if len(ec.Groups) > 0 {
		attrs[provider.GroupsAttribute] = ec.Groups
	}
	if len(ec.PersonProperties) > 0 {
		attrs[provider.PersonPropertiesAttribute] = ec.PersonProperties
	}
	if len(ec.GroupProperties) > 0 {
		attrs[provider.GroupPropertiesAttribute] = ec.GroupProperties
	}
	return openfeature.NewEvaluationContext(ec.TargetingKey, attrs)
}

func fromDetails[T any](value T, d openfeature.EvaluationDetails) provider.ResolutionDetails[T] {
	return provider.ResolutionDetails[T]{
		Value:        value,
		Variant:      d.Variant,
		Reason:       provider.Reason(d.Reason),
		ErrorCode:    provider.ErrorCode(d.ErrorCode),
		ErrorMessage: d.ErrorMessage,
	}
}

func invalidContext[T any](defaultValue T, err error) provider.ResolutionDetails[T] {
	return provider.ResolutionDetails[T]{
		Value:        defaultValue,
		Reason:       provider.ReasonError,
		ErrorCode:    provider.ErrorCodeInvalidContext,
		ErrorMessage: err.Error(),
	}
}
