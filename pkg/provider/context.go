package provider

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
)

// translateContext maps an EvaluationContext onto the backend's query shape.
//
// Preconditions:
//   - ec.TargetingKey may be empty (the caller decides how to handle it)
//   - Groups, PersonProperties and GroupProperties may be nil
//
// Postconditions:
//   - DistinctID is ec.TargetingKey
//   - Empty maps are dropped (nil in the query) so no empty objects are sent
//   - Key and OnlyEvaluateLocally are left for the caller to fill
//
// Edge Cases:
//   - A group whose key is not a string: *ValidationError
//   - A property leaf that is an array, number, bool or nil: *ValidationError
//   - Nested property maps are accepted at any depth
func translateContext(ec EvaluationContext) (backend.FlagQuery, error) {
	q := backend.FlagQuery{DistinctID: ec.TargetingKey}

	if len(ec.Groups) > 0 {
		groups := make(map[string]string, len(ec.Groups))
		for _, groupType := range slices.Sorted(maps.Keys(ec.Groups)) {
			id, ok := ec.Groups[groupType].(string)
			if !ok {
				return backend.FlagQuery{}, &ValidationError{
					Field:   "groups." + groupType,
					Message: fmt.Sprintf("group key must be a string, got %s", typeName(ec.Groups[groupType])),
				}
			}
			groups[groupType] = id
		}
		q.Groups = groups
	}

	if len(ec.PersonProperties) > 0 {
		if err := validateStringTree("personProperties", ec.PersonProperties); err != nil {
			return backend.FlagQuery{}, err
		}
		q.PersonProperties = ec.PersonProperties
	}

	if len(ec.GroupProperties) > 0 {
		if err := validateStringTree("groupProperties", ec.GroupProperties); err != nil {
			return backend.FlagQuery{}, err
		}
		q.GroupProperties = ec.GroupProperties
	}

	return q, nil
}

// validateStringTree walks m depth-first in key order and fails on the first
// leaf that is not a string.
func validateStringTree(path string, m map[string]any) error {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		field := path + "." + k
		switch v := m[k].(type) {
		case string:
		case map[string]any:
			if err := validateStringTree(field, v); err != nil {
				return err
			}
		case map[string]string:
		case []any, []string, []map[string]any:
			return &ValidationError{Field: field, Message: "arrays are not supported"}
		default:
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("value must be a string, got %s", typeName(v)),
			}
		}
	}
	return nil
}

// typeName names a decoded value the way JSON would.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case map[string]any, map[string]string:
		return "object"
	case []any, []string, []map[string]any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Validate reports the first attribute that PostHog cannot accept, as a
// *ValidationError. A missing targeting key is not a validation failure.
func (ec EvaluationContext) Validate() error {
	_, err := translateContext(ec)
	return err
}
