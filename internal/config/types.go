package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SupportedVersion is the config schema version this build understands
const SupportedVersion = "v1"

const (
	DefaultBaseURL = "http://localhost:8080/api"
	DefaultTimeout = time.Second
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// GoString keeps %#v from leaking the value
func (s Secret) GoString() string {
	return s.String()
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Reveal returns the underlying value. Call sites should be rare and obvious.
func (s Secret) Reveal() string {
	return string(s)
}

// APIConfig describes the remote wishlist API the client talks to
type APIConfig struct {
	BaseURL string        `json:"baseURL"`
	Timeout time.Duration `json:"timeout"`
}

// SessionConfig controls how the session store behaves
type SessionConfig struct {
	// RetainPassword keeps the password of the last successful login in
	// memory so CurrentUserPassword can report it. Off unless asked for.
	RetainPassword bool `json:"retainPassword"`

	// InvalidateOnUnauthorized logs the session out when any request comes
	// back 401.
	InvalidateOnUnauthorized bool `json:"invalidateOnUnauthorized"`
}

// CredentialsConfig holds the login used by the CLI on startup
type CredentialsConfig struct {
	Username string `json:"username"`
	Password Secret `json:"password"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version     string             `json:"version"`
	API         APIConfig          `json:"api"`
	Session     SessionConfig      `json:"session"`
	Credentials *CredentialsConfig `json:"credentials,omitempty"`
}

// RawConfigValue represents a value that could be a string or env ref.
// This is only used during parsing, not in the final config
type RawConfigValue struct {
	value   string
	fromEnv bool
}

// ParseConfigValue parses a JSON value that could be a string or {"$env": "VAR"} object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return nil, fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return &RawConfigValue{value: value, fromEnv: true}, nil
}
