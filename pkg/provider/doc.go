// Package provider implements an OpenFeature provider backed by PostHog.
//
// # Basic Usage
//
//	p, err := provider.New(provider.Configuration{
//	    APIKey:          os.Getenv("POSTHOG_API_KEY"),
//	    PersonalAPIKey:  os.Getenv("POSTHOG_PERSONAL_API_KEY"),
//	    EvaluateLocally: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := openfeature.SetProviderAndWait(p); err != nil {
//	    log.Fatal(err)
//	}
//	client := openfeature.NewClient("my-app")
//	evalCtx := openfeature.NewEvaluationContext("user-123", map[string]any{
//	    "groups": map[string]any{"company": "acme"},
//	})
//	enabled, _ := client.BooleanValue(ctx, "new-checkout", false, evalCtx)
//
// An existing PostHog client can be reused instead of a Configuration:
//
//	p, err := provider.New(provider.PrebuiltClient{Backend: backend.WrapPostHog(client)})
//
// # Resolution
//
// The typed Resolve* methods are the core API. Expected degradations (no
// targeting key, unknown flag, PostHog unreachable) never return an error:
// the caller's default comes back with Reason and ErrorCode explaining why.
// Contract violations (a flag of the wrong type, an unparseable payload,
// an invalid context) return a typed error alongside the default.
//
// The OpenFeature methods (BooleanEvaluation and friends) wrap the typed
// methods and report every failure through ResolutionError, as the
// OpenFeature SDK expects.
//
// # Concurrency
//
// The provider is safe for concurrent use. Close may be called more than
// once but must not race with in-flight evaluations.
package provider
