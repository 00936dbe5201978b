package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "PHFLAG_CONFIG"

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the PostHog credentials for one project.
type Profile struct {
	Host           string `yaml:"host,omitempty"`
	APIKey         string `yaml:"api_key"`
	PersonalAPIKey string `yaml:"personal_api_key"`
	Backend        string `yaml:"backend,omitempty"` // sdk or decide
}

// Redacted returns a copy with the keys shortened for display.
func (p Profile) Redacted() Profile {
	p.APIKey = redact(p.APIKey)
	p.PersonalAPIKey = redact(p.PersonalAPIKey)
	return p
}

func redact(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".phflag", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{
				DefaultProfile: "default",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveProfile returns the effective profile and its name.
// Priority: command flags > POSTHOG_* environment variables > config file.
//
// A missing profile is only an error when nothing else supplies both keys.
func ResolveProfile(name string, flags Profile) (*Profile, string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		name = cfg.DefaultProfile
	}

	p, found := cfg.Profiles[name]
	overlay(&p, Profile{
		Host:           os.Getenv("POSTHOG_HOST"),
		APIKey:         os.Getenv("POSTHOG_API_KEY"),
		PersonalAPIKey: os.Getenv("POSTHOG_PERSONAL_API_KEY"),
	})
	overlay(&p, flags)

	if p.Backend == "" {
		p.Backend = "sdk"
	}
	if p.APIKey == "" || p.PersonalAPIKey == "" {
		if !found {
			return nil, "", fmt.Errorf("profile '%s' not found in config and no API keys given", name)
		}
		return nil, "", fmt.Errorf("api_key and personal_api_key must be configured for profile '%s'", name)
	}
	return &p, name, nil
}

func overlay(dst *Profile, src Profile) {
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.PersonalAPIKey != "" {
		dst.PersonalAPIKey = src.PersonalAPIKey
	}
	if src.Backend != "" {
		dst.Backend = src.Backend
	}
}

// InitConfig creates a config file with a placeholder default profile.
func InitConfig() error {
	return SaveConfig(&Config{
		DefaultProfile: "default",
		Profiles: map[string]Profile{
			"default": {
				Host:           "https://us.i.posthog.com",
				APIKey:         "phc_replace_me",
				PersonalAPIKey: "phx_replace_me",
				Backend:        "sdk",
			},
		},
	})
}
