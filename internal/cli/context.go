package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// ContextFlags holds the raw targeting flags of an eval command.
type ContextFlags struct {
	TargetingKey string
	Groups       []string // type=key
	Props        []string // name=value, dotted names nest
	GroupProps   []string // type.name=value
}

// BuildContext turns the raw flags into an EvaluationContext.
func BuildContext(f ContextFlags) (provider.EvaluationContext, error) {
	ec := provider.EvaluationContext{TargetingKey: f.TargetingKey}

	if len(f.Groups) > 0 {
		ec.Groups = make(map[string]any, len(f.Groups))
		for _, raw := range f.Groups {
			k, v, err := splitAssignment("--group", raw)
			if err != nil {
				return provider.EvaluationContext{}, err
			}
			ec.Groups[k] = v
		}
	}

	if len(f.Props) > 0 {
		ec.PersonProperties = make(map[string]any)
		for _, raw := range f.Props {
			k, v, err := splitAssignment("--prop", raw)
			if err != nil {
				return provider.EvaluationContext{}, err
			}
			if err := setPath(ec.PersonProperties, strings.Split(k, "."), v); err != nil {
				return provider.EvaluationContext{}, fmt.Errorf("--prop %s: %w", raw, err)
			}
		}
	}

	if len(f.GroupProps) > 0 {
		ec.GroupProperties = make(map[string]any)
		for _, raw := range f.GroupProps {
			k, v, err := splitAssignment("--group-prop", raw)
			if err != nil {
				return provider.EvaluationContext{}, err
			}
			path := strings.Split(k, ".")
			if len(path) < 2 {
				return provider.EvaluationContext{}, fmt.Errorf("--group-prop %s: expected type.name=value", raw)
			}
			if err := setPath(ec.GroupProperties, path, v); err != nil {
				return provider.EvaluationContext{}, fmt.Errorf("--group-prop %s: %w", raw, err)
			}
		}
	}

	return ec, nil
}

func splitAssignment(flag, raw string) (string, string, error) {
	k, v, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return "", "", fmt.Errorf("%s %q: expected name=value", flag, raw)
	}
	return strings.TrimSpace(k), v, nil
}

func setPath(m map[string]any, path []string, value string) error {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p]
		if !ok {
			child := make(map[string]any)
			m[p] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is already set to a value", p)
		}
		m = child
	}

	leaf := path[len(path)-1]
	if _, ok := m[leaf].(map[string]any); ok {
		return fmt.Errorf("%s already has nested properties", leaf)
	}
	m[leaf] = value
	return nil
}

// ParseDefault parses the --default flag for a flag type. An empty raw value
// gives the type's zero value.
func ParseDefault(flagType, raw string) (any, error) {
	switch flagType {
	case "bool", "boolean":
		if raw == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean default %q", raw)
		}
		return b, nil
	case "string":
		return raw, nil
	case "number":
		if raw == "" {
			return 0.0, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number default %q", raw)
		}
		return f, nil
	case "object":
		if raw == "" {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON default: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported flag type %q (want bool, string, number or object)", flagType)
	}
}
