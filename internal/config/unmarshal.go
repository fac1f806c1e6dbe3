package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for APIConfig
func (a *APIConfig) UnmarshalJSON(data []byte) error {
	type rawAPI struct {
		BaseURL json.RawMessage `json:"baseURL"`
		Timeout string          `json:"timeout"`
	}

	var raw rawAPI
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.BaseURL = DefaultBaseURL
	if raw.BaseURL != nil {
		parsed, err := ParseConfigValue(raw.BaseURL)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		a.BaseURL = parsed.value
	}

	a.Timeout = DefaultTimeout
	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %q", raw.Timeout)
		}
		a.Timeout = timeout
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionConfig.
// invalidateOnUnauthorized defaults to true when omitted.
func (s *SessionConfig) UnmarshalJSON(data []byte) error {
	type rawSession struct {
		RetainPassword           bool  `json:"retainPassword"`
		InvalidateOnUnauthorized *bool `json:"invalidateOnUnauthorized"`
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.RetainPassword = raw.RetainPassword
	s.InvalidateOnUnauthorized = true
	if raw.InvalidateOnUnauthorized != nil {
		s.InvalidateOnUnauthorized = *raw.InvalidateOnUnauthorized
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for CredentialsConfig
func (c *CredentialsConfig) UnmarshalJSON(data []byte) error {
	type rawCredentials struct {
		Username json.RawMessage `json:"username"`
		Password json.RawMessage `json:"password"`
	}

	var raw rawCredentials
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Username != nil {
		parsed, err := ParseConfigValue(raw.Username)
		if err != nil {
			return fmt.Errorf("parsing username: %w", err)
		}
		c.Username = parsed.value
	}

	if raw.Password != nil {
		parsed, err := ParseConfigValue(raw.Password)
		if err != nil {
			return fmt.Errorf("parsing password: %w", err)
		}
		if !parsed.fromEnv {
			return fmt.Errorf("password must use {\"$env\": \"VAR_NAME\"} format")
		}
		c.Password = Secret(parsed.value)
	}

	return nil
}

// defaults fills sections that were omitted from the file entirely
func (c *Config) defaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultTimeout
	}
}
