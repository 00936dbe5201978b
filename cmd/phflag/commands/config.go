package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tapico/go-posthog-openfeature/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage phflag CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.phflag/config.yaml
(or the path in PHFLAG_CONFIG).

Example:
  phflag config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := cli.GetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s", configPath)
		}
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration file created at: %s\n", configPath)
		fmt.Println("\nPlease edit the file to set your PostHog API keys.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective profile",
	Long: `Display the profile phflag would use, after applying flags and POSTHOG_*
environment variables. API keys are redacted.

Examples:
  phflag config show
  phflag config show --profile eu`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, name, err := cli.ResolveProfile(profile, cli.Profile{
			Host:           host,
			APIKey:         apiKey,
			PersonalAPIKey: personalAPIKey,
			Backend:        backendName,
		})
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(map[string]cli.Profile{name: p.Redacted()})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <profile.key> <value>",
	Short: "Set a configuration value",
	Long: `Set a value in a profile, creating the profile if needed.

Examples:
  phflag config set default.host https://eu.i.posthog.com
  phflag config set default.api_key phc_xxx
  phflag config set default.backend decide`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		name, key, ok := strings.Cut(args[0], ".")
		if !ok || name == "" {
			return fmt.Errorf("invalid key format, expected 'profile.key' (e.g., 'default.host')")
		}
		value := args[1]

		p := cfg.Profiles[name]
		switch key {
		case "host":
			p.Host = value
		case "api_key":
			p.APIKey = value
		case "personal_api_key":
			p.PersonalAPIKey = value
		case "backend":
			if value != "sdk" && value != "decide" {
				return fmt.Errorf("backend must be 'sdk' or 'decide', got '%s'", value)
			}
			p.Backend = value
		default:
			return fmt.Errorf("unknown key '%s', valid keys: host, api_key, personal_api_key, backend", key)
		}
		cfg.Profiles[name] = p

		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Successfully set %s.%s\n", name, key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
