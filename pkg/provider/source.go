package provider

import (
	"time"

	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
)

// Source tells New where the backend client comes from. It is either a
// PrebuiltClient or a Configuration.
type Source interface {
	isSource()
}

// PrebuiltClient hands the provider an existing backend. The provider takes
// ownership: Close shuts the backend down.
type PrebuiltClient struct {
	Backend backend.Backend
	// EvaluateLocally restricts lookups to the locally cached rule set.
	EvaluateLocally bool
	// SendFeatureFlagEvents emits $feature_flag_called after each lookup.
	SendFeatureFlagEvents bool
}

// Configuration is enough to build a posthog-go backend.
type Configuration struct {
	APIKey                string        // Project API key (phc_...)
	PersonalAPIKey        string        // Personal API key (phx_...), used to fetch flag definitions
	Host                  string        // PostHog host, empty for the SDK default
	EvaluateLocally       bool          // Only evaluate with the locally cached rule set
	PollInterval          time.Duration // Rule set refresh interval, zero for the SDK default
	SendFeatureFlagEvents bool          // Emit $feature_flag_called after each lookup
}

func (PrebuiltClient) isSource() {}
func (Configuration) isSource()  {}
