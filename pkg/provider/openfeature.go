package provider

import (
	"context"
	"fmt"
	"math"

	"github.com/open-feature/go-sdk/openfeature"
)

// Attribute names read from an OpenFeature evaluation context.
const (
	GroupsAttribute           = "groups"
	PersonPropertiesAttribute = "personProperties"
	GroupPropertiesAttribute  = "groupProperties"
)

var (
	_ openfeature.FeatureProvider = (*Provider)(nil)
	_ openfeature.StateHandler    = (*Provider)(nil)
)

// BooleanEvaluation implements openfeature.FeatureProvider.
func (p *Provider) BooleanEvaluation(ctx context.Context, flag string, defaultValue bool, evalCtx openfeature.FlattenedContext) openfeature.BoolResolutionDetail {
	ec, err := ContextFromFlattened(evalCtx)
	if err != nil {
		return openfeature.BoolResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeInvalidContext, err))}
	}
	res, _ := p.ResolveBoolean(ctx, flag, defaultValue, ec)
	return openfeature.BoolResolutionDetail{Value: res.Value, ProviderResolutionDetail: providerDetail(res)}
}

// StringEvaluation implements openfeature.FeatureProvider.
func (p *Provider) StringEvaluation(ctx context.Context, flag string, defaultValue string, evalCtx openfeature.FlattenedContext) openfeature.StringResolutionDetail {
	ec, err := ContextFromFlattened(evalCtx)
	if err != nil {
		return openfeature.StringResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeInvalidContext, err))}
	}
	res, _ := p.ResolveString(ctx, flag, defaultValue, ec)
	return openfeature.StringResolutionDetail{Value: res.Value, ProviderResolutionDetail: providerDetail(res)}
}

// FloatEvaluation implements openfeature.FeatureProvider.
func (p *Provider) FloatEvaluation(ctx context.Context, flag string, defaultValue float64, evalCtx openfeature.FlattenedContext) openfeature.FloatResolutionDetail {
	ec, err := ContextFromFlattened(evalCtx)
	if err != nil {
		return openfeature.FloatResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeInvalidContext, err))}
	}
	res, _ := p.ResolveNumber(ctx, flag, defaultValue, ec)
	return openfeature.FloatResolutionDetail{Value: res.Value, ProviderResolutionDetail: providerDetail(res)}
}

// IntEvaluation implements openfeature.FeatureProvider. The flag must
// resolve to an integral number.
func (p *Provider) IntEvaluation(ctx context.Context, flag string, defaultValue int64, evalCtx openfeature.FlattenedContext) openfeature.IntResolutionDetail {
	ec, err := ContextFromFlattened(evalCtx)
	if err != nil {
		return openfeature.IntResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeInvalidContext, err))}
	}

	res, _ := p.ResolveNumber(ctx, flag, float64(defaultValue), ec)
	if res.ErrorCode != "" {
		return openfeature.IntResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(res)}
	}
	if res.Value != math.Trunc(res.Value) || res.Value >= math.MaxInt64 || res.Value < math.MinInt64 {
		err := &TypeMismatchError{FlagKey: flag, Actual: fmt.Sprintf("number (%v)", res.Value), Expected: "integer"}
		return openfeature.IntResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeTypeMismatch, err))}
	}
	return openfeature.IntResolutionDetail{Value: int64(res.Value), ProviderResolutionDetail: providerDetail(res)}
}

// ObjectEvaluation implements openfeature.FeatureProvider.
func (p *Provider) ObjectEvaluation(ctx context.Context, flag string, defaultValue interface{}, evalCtx openfeature.FlattenedContext) openfeature.InterfaceResolutionDetail {
	ec, err := ContextFromFlattened(evalCtx)
	if err != nil {
		return openfeature.InterfaceResolutionDetail{Value: defaultValue, ProviderResolutionDetail: providerDetail(failed(defaultValue, ErrorCodeInvalidContext, err))}
	}
	res, _ := p.ResolveObject(ctx, flag, defaultValue, ec)
	return openfeature.InterfaceResolutionDetail{Value: res.Value, ProviderResolutionDetail: providerDetail(res)}
}

// Init implements openfeature.StateHandler. The backend is ready once New
// returns, so there is nothing to wait for.
func (p *Provider) Init(openfeature.EvaluationContext) error {
	return nil
}

// Shutdown implements openfeature.StateHandler.
func (p *Provider) Shutdown() {
	if err := p.Close(); err != nil {
		p.logger.Error().Err(err).Msg("failed to close posthog backend")
	}
}

// ContextFromFlattened builds an EvaluationContext from an OpenFeature
// flattened context.
//
// The targetingKey, groups, personProperties and groupProperties attributes
// map onto the same-named fields. Every other attribute is folded into
// PersonProperties unless personProperties already sets it.
func ContextFromFlattened(fc openfeature.FlattenedContext) (EvaluationContext, error) {
	var ec EvaluationContext
	extra := make(map[string]any)

	for k, v := range fc {
		switch k {
		case openfeature.TargetingKey:
			s, ok := v.(string)
			if !ok {
				return EvaluationContext{}, &ValidationError{Field: k, Message: fmt.Sprintf("must be a string, got %s", typeName(v))}
			}
			ec.TargetingKey = s
		case GroupsAttribute:
			m, err := asObject(k, v)
			if err != nil {
				return EvaluationContext{}, err
			}
			ec.Groups = m
		case PersonPropertiesAttribute:
			m, err := asObject(k, v)
			if err != nil {
				return EvaluationContext{}, err
			}
			ec.PersonProperties = m
		case GroupPropertiesAttribute:
			m, err := asObject(k, v)
			if err != nil {
				return EvaluationContext{}, err
			}
			ec.GroupProperties = m
		default:
			extra[k] = v
		}
	}

	if len(extra) > 0 {
		merged := make(map[string]any, len(extra)+len(ec.PersonProperties))
		for k, v := range extra {
			merged[k] = v
		}
		for k, v := range ec.PersonProperties {
			merged[k] = v
		}
		ec.PersonProperties = merged
	}
	return ec, nil
}

func asObject(field string, v any) (map[string]any, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: field, Message: fmt.Sprintf("must be an object, got %s", typeName(v))}
	}
}

func providerDetail[T any](res ResolutionDetails[T]) openfeature.ProviderResolutionDetail {
	d := openfeature.ProviderResolutionDetail{
		Reason:  openfeature.Reason(res.Reason),
		Variant: res.Variant,
	}
	if res.ErrorCode != "" {
		d.ResolutionError = resolutionError(res.ErrorCode, res.ErrorMessage)
	}
	return d
}

func resolutionError(code ErrorCode, msg string) openfeature.ResolutionError {
	switch code {
	case ErrorCodeTargetingKeyMissing:
		return openfeature.NewTargetingKeyMissingResolutionError(msg)
	case ErrorCodeFlagNotFound:
		return openfeature.NewFlagNotFoundResolutionError(msg)
	case ErrorCodeTypeMismatch:
		return openfeature.NewTypeMismatchResolutionError(msg)
	case ErrorCodeParseError:
		return openfeature.NewParseErrorResolutionError(msg)
	case ErrorCodeInvalidContext:
		return openfeature.NewInvalidContextResolutionError(msg)
	default:
		return openfeature.NewGeneralResolutionError(msg)
	}
}
