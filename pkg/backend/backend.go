// Package backend adapts PostHog clients to the narrow surface the provider
// needs: a flag lookup, a payload lookup, event capture and shutdown.
//
// Two implementations are provided:
//
//   - PostHog wraps the official posthog-go SDK and supports both local
//     (cached rule set) and remote evaluation.
//   - Decide talks to the /decide and /capture HTTP endpoints directly and
//     only supports remote evaluation.
//
// Callers that need something else (a test double, a different SDK major
// version) implement Backend themselves.
package backend

import "context"

// Backend is the adapter the provider evaluates flags through.
//
// GetFlag and GetPayload return a nil value with a nil error when PostHog has
// no knowledge of the flag (or of its payload). Any returned error is treated
// by the provider as a transient backend failure.
type Backend interface {
	GetFlag(ctx context.Context, q FlagQuery) (any, error)
	GetPayload(ctx context.Context, q PayloadQuery) (any, error)
	Capture(ctx context.Context, e Event) error
	Close() error
}

// FlagQuery is one flag lookup.
type FlagQuery struct {
	Key        string
	DistinctID string
	// Groups maps a group type to the group key, e.g. {"company": "acme"}.
	Groups map[string]string
	// PersonProperties are extra targeting attributes for the person.
	PersonProperties map[string]any
	// GroupProperties is keyed by group type; string leaves at the top level
	// apply to every group in Groups.
	GroupProperties map[string]any
	// OnlyEvaluateLocally forbids a remote fallback when the local rule set
	// cannot decide the flag.
	OnlyEvaluateLocally bool
}

// PayloadQuery is one payload lookup. It carries the same identity and
// targeting attributes as the flag lookup it belongs to.
type PayloadQuery struct {
	FlagQuery
	// MatchValue is the flag value already resolved for this subject. It is
	// used as the variant hint so the payload matches the decision.
	MatchValue any
}

// Event is an analytics event sent through Capture.
type Event struct {
	DistinctID string
	Name       string
	Properties map[string]any
	Groups     map[string]string
}

// splitGroupProperties turns the provider-side group property tree into the
// per-group-type maps PostHog expects. Top-level string leaves are shared by
// every group type present in groups.
func splitGroupProperties(groups map[string]string, props map[string]any) map[string]map[string]any {
	if len(props) == 0 {
		return nil
	}

	out := make(map[string]map[string]any)
	shared := make(map[string]any)
	for k, v := range props {
		if nested, ok := v.(map[string]any); ok {
			m := make(map[string]any, len(nested))
			for nk, nv := range nested {
				m[nk] = nv
			}
			out[k] = m
			continue
		}
		shared[k] = v
	}

	if len(shared) > 0 {
		for groupType := range groups {
			m, ok := out[groupType]
			if !ok {
				m = make(map[string]any, len(shared))
				out[groupType] = m
			}
			for k, v := range shared {
				if _, exists := m[k]; !exists {
					m[k] = v
				}
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
