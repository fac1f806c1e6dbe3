package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != SupportedVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	config.defaults()
	if _, ok := rawConfig["session"]; !ok {
		config.Session.InvalidateOnUnauthorized = true
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	creds, ok := rawConfig["credentials"].(map[string]any)
	if !ok {
		return nil
	}
	password, exists := creds["password"]
	if !exists {
		return nil
	}
	if verr := validateEnvVarReference(password, "password", "credentials.password"); verr != nil {
		return fmt.Errorf("%s", verr.Message)
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("api.baseURL is required")
	}
	u, err := url.Parse(config.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.baseURL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.baseURL must be an absolute http(s) URL, got %q", config.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.baseURL must include a host")
	}
	if config.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}

	if creds := config.Credentials; creds != nil {
		if strings.TrimSpace(creds.Username) == "" {
			return fmt.Errorf("credentials.username is required when credentials are configured")
		}
		if creds.Password == "" {
			return fmt.Errorf("credentials.password is required when credentials are configured")
		}
	}

	return nil
}
