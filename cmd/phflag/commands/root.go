package commands

import (
	"github.com/spf13/cobra"

	"github.com/Tapico/go-posthog-openfeature/internal/version"
)

var (
	// Global flags
	profile        string
	host           string
	apiKey         string
	personalAPIKey string
	backendName    string
	format         string
	local          bool
	verbose        bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "phflag",
	Short:   "Evaluate PostHog feature flags through the OpenFeature provider",
	Version: version.Version,
	Long: `phflag evaluates PostHog feature flags the same way an application using
the OpenFeature provider does, and prints the resolution details.

Credentials come from flags, POSTHOG_* environment variables or a profile in
~/.phflag/config.yaml, in that order.

Examples:
  phflag eval bool new-checkout --targeting-key user-1
  phflag eval object theme --targeting-key user-1 --group company=acme
  phflag eval-many new-checkout theme beta --targeting-key user-1 --format json
  phflag config show --profile eu
  phflag keygen`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "Config profile (defaults to default_profile)")
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "PostHog host")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "PostHog project API key")
	rootCmd.PersistentFlags().StringVar(&personalAPIKey, "personal-api-key", "", "PostHog personal API key")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Flag backend (sdk, decide)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "Only evaluate with locally cached flag definitions")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
