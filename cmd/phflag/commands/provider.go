package commands

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Tapico/go-posthog-openfeature/internal/cli"
	"github.com/Tapico/go-posthog-openfeature/internal/logging"
	"github.com/Tapico/go-posthog-openfeature/pkg/backend"
	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// newProvider builds a provider from the resolved profile. Flag lookups are
// not reported back to PostHog from the CLI.
func newProvider() (*provider.Provider, error) {
	p, name, err := cli.ResolveProfile(profile, cli.Profile{
		Host:           host,
		APIKey:         apiKey,
		PersonalAPIKey: personalAPIKey,
		Backend:        backendName,
	})
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := cliLogger()
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("profile", name).Str("backend", p.Backend).Str("host", p.Host).Msg("using profile")

	switch p.Backend {
	case "sdk":
		return provider.New(provider.Configuration{
			APIKey:          p.APIKey,
			PersonalAPIKey:  p.PersonalAPIKey,
			Host:            p.Host,
			EvaluateLocally: local,
		}, provider.WithLogger(logger))
	case "decide":
		return provider.New(provider.PrebuiltClient{
			Backend:         backend.NewDecide(p.Host, p.APIKey, p.PersonalAPIKey),
			EvaluateLocally: local,
		}, provider.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported backend %q (want sdk or decide)", p.Backend)
	}
}

func cliLogger() (zerolog.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(level, "console")
}
