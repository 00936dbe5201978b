package provider

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
)

func TestContextFromFlattened(t *testing.T) {
	ec, err := ContextFromFlattened(openfeature.FlattenedContext{
		openfeature.TargetingKey: "u1",
		"groups":                 map[string]any{"account": "g1"},
		"personProperties":       map[string]any{"plan": "pro"},
		"groupProperties":        map[string]any{"account": map[string]any{"tier": "gold"}},
		"email":                  "u1@example.com",
		"plan":                   "free",
	})
	require.NoError(t, err)

	assert.Equal(t, EvaluationContext{
		TargetingKey:     "u1",
		Groups:           map[string]any{"account": "g1"},
		PersonProperties: map[string]any{"plan": "pro", "email": "u1@example.com"},
		GroupProperties:  map[string]any{"account": map[string]any{"tier": "gold"}},
	}, ec)
}

func TestContextFromFlattened_StringMaps(t *testing.T) {
	ec, err := ContextFromFlattened(openfeature.FlattenedContext{
		"groups": map[string]string{"account": "g1"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"account": "g1"}, ec.Groups)
	assert.Empty(t, ec.TargetingKey)
}

func TestContextFromFlattened_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		fc    openfeature.FlattenedContext
		field string
	}{
		{"numeric targeting key", openfeature.FlattenedContext{openfeature.TargetingKey: 7}, openfeature.TargetingKey},
		{"groups not an object", openfeature.FlattenedContext{"groups": "account"}, "groups"},
		{"person properties list", openfeature.FlattenedContext{"personProperties": []any{"a"}}, "personProperties"},
		{"group properties scalar", openfeature.FlattenedContext{"groupProperties": 1.0}, "groupProperties"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ContextFromFlattened(tt.fc)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestBooleanEvaluation(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, flagKey("dummy")).Return(true, nil)

	res := p.BooleanEvaluation(context.Background(), "dummy", false, openfeature.FlattenedContext{openfeature.TargetingKey: "u1"})

	assert.True(t, res.Value)
	assert.Equal(t, openfeature.TargetingMatchReason, res.Reason)
	assert.NoError(t, res.Error())
}

func TestBooleanEvaluation_FlagNotFound(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, mock.Anything).Return(nil, nil)

	res := p.BooleanEvaluation(context.Background(), "dummy2", true, openfeature.FlattenedContext{openfeature.TargetingKey: "u1"})

	assert.True(t, res.Value)
	assert.Equal(t, openfeature.DefaultReason, res.Reason)
	require.Error(t, res.Error())
	assert.Contains(t, res.Error().Error(), string(openfeature.FlagNotFoundCode))
}

func TestStringEvaluation_TypeMismatch(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, mock.Anything).Return(true, nil)

	res := p.StringEvaluation(context.Background(), "checkout", "control", openfeature.FlattenedContext{openfeature.TargetingKey: "u1"})

	assert.Equal(t, "control", res.Value)
	assert.Equal(t, openfeature.ErrorReason, res.Reason)
	require.Error(t, res.Error())
	assert.Contains(t, res.Error().Error(), string(openfeature.TypeMismatchCode))
}

func TestStringEvaluation_Variant(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, mock.Anything).Return("treatment", nil)

	res := p.StringEvaluation(context.Background(), "checkout", "control", openfeature.FlattenedContext{openfeature.TargetingKey: "u1"})

	assert.Equal(t, "treatment", res.Value)
	assert.Equal(t, "treatment", res.Variant)
}

func TestFloatEvaluation_MissingTargetingKey(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})

	res := p.FloatEvaluation(context.Background(), "limit", 2.5, openfeature.FlattenedContext{})

	assert.Equal(t, 2.5, res.Value)
	require.Error(t, res.Error())
	assert.Contains(t, res.Error().Error(), string(openfeature.TargetingKeyMissingCode))
	b.AssertNotCalled(t, "GetFlag", mock.Anything, mock.Anything)
}

func TestIntEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		want      int64
		errorCode openfeature.ErrorCode
	}{
		{"integral float", 12.0, 12, ""},
		{"int", 7, 7, ""},
		{"fractional", 1.5, 3, openfeature.TypeMismatchCode},
		{"string", "12", 3, openfeature.TypeMismatchCode},
		{"two to the 63", math.Exp2(63), 3, openfeature.TypeMismatchCode},
		{"above int64", 1e19, 3, openfeature.TypeMismatchCode},
		{"below int64", -1e19, 3, openfeature.TypeMismatchCode},
		{"min int64", -math.Exp2(63), math.MinInt64, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, b := newTestProvider(t, PrebuiltClient{})
			b.On("GetFlag", mock.Anything, mock.Anything).Return(tt.value, nil)

			res := p.IntEvaluation(context.Background(), "limit", 3, openfeature.FlattenedContext{openfeature.TargetingKey: "u1"})

			assert.Equal(t, tt.want, res.Value)
			if tt.errorCode == "" {
				assert.NoError(t, res.Error())
				return
			}
			require.Error(t, res.Error())
			assert.Contains(t, res.Error().Error(), string(tt.errorCode))
		})
	}
}

func TestObjectEvaluation_Payload(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, flagKey("dummy5")).Return(true, nil)
	b.On("GetPayload", mock.Anything, mock.Anything).Return(`{"mocked":"v"}`, nil)

	res := p.ObjectEvaluation(context.Background(), "dummy5", map[string]any{"payload": "fallback"}, openfeature.FlattenedContext{
		openfeature.TargetingKey: "u2",
	})

	assert.Equal(t, map[string]any{"mocked": "v"}, res.Value)
	assert.Equal(t, openfeature.TargetingMatchReason, res.Reason)
	assert.NoError(t, res.Error())
}

func TestEvaluation_InvalidContext(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})

	res := p.BooleanEvaluation(context.Background(), "dummy", true, openfeature.FlattenedContext{
		openfeature.TargetingKey: "u1",
		"personProperties":       map[string]any{"age": 30},
	})

	assert.True(t, res.Value)
	assert.Equal(t, openfeature.ErrorReason, res.Reason)
	require.Error(t, res.Error())
	assert.Contains(t, res.Error().Error(), string(openfeature.InvalidContextCode))
	b.AssertNotCalled(t, "GetFlag", mock.Anything, mock.Anything)
}

func TestEvaluation_ExtraAttributesReachBackend(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, mock.MatchedBy(func(q backend.FlagQuery) bool {
		return q.PersonProperties["country"] == "NL"
	})).Return(true, nil)

	res := p.BooleanEvaluation(context.Background(), "dummy", false, openfeature.FlattenedContext{
		openfeature.TargetingKey: "u1",
		"country":                "NL",
	})
	assert.True(t, res.Value)
	b.AssertExpectations(t)
}

func TestShutdown_ClosesBackend(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("Close").Return(errors.New("flush failed")).Once()

	require.NoError(t, p.Init(openfeature.NewTargetlessEvaluationContext(nil)))
	p.Shutdown()
	p.Shutdown()
	b.AssertNumberOfCalls(t, "Close", 1)
}

func TestOpenFeatureClient(t *testing.T) {
	p, b := newTestProvider(t, PrebuiltClient{})
	b.On("GetFlag", mock.Anything, flagKey("dummy")).Return(true, nil)
	b.On("Close").Return(nil).Maybe()

	require.NoError(t, openfeature.SetNamedProviderAndWait("posthog-test", p))
	client := openfeature.NewClient("posthog-test")

	enabled, err := client.BooleanValue(context.Background(), "dummy", false, openfeature.NewEvaluationContext("u1", nil))
	require.NoError(t, err)
	assert.True(t, enabled)
}
