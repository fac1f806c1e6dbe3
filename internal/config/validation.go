package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/wishlist-front/internal/envutil"
)

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateBytes(data), nil
}

// ValidateBytes is ValidateFile on an in-memory document
func ValidateBytes(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
		})
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("version field is required. Hint: Add \"version\": %q", SupportedVersion),
		})
	} else if version != SupportedVersion {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "version",
			Message: fmt.Sprintf("unsupported version '%s' - use '%s'", version, SupportedVersion),
		})
	}

	validateAPIStructure(rawConfig, result)
	validateSessionStructure(rawConfig, result)
	validateCredentialsStructure(rawConfig, result)

	return result
}

// validateAPIStructure checks the api section
func validateAPIStructure(rawConfig map[string]any, result *ValidationResult) {
	rawAPI, exists := rawConfig["api"]
	if !exists {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "api",
			Message: fmt.Sprintf("api section missing - defaulting to %s", DefaultBaseURL),
		})
		return
	}
	api, ok := rawAPI.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "api",
			Message: "api must be an object",
		})
		return
	}

	switch baseURL := api["baseURL"].(type) {
	case nil:
	case string:
		if strings.HasPrefix(baseURL, "http://") && !envutil.IsDev() {
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    "api.baseURL",
				Message: "baseURL uses plain http - bearer tokens will travel unencrypted. Set WISHLIST_ENV=development to silence this for local work",
			})
		} else if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "api.baseURL",
				Message: fmt.Sprintf("baseURL must be an absolute http(s) URL, got '%s'", baseURL),
			})
		}
	case map[string]any:
		if _, hasEnv := baseURL["$env"]; !hasEnv {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "api.baseURL",
				Message: "baseURL must be a string or {\"$env\": \"VAR_NAME\"}",
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Path:    "api.baseURL",
			Message: fmt.Sprintf("baseURL must be a string, not %T", baseURL),
		})
	}

	if timeout, exists := api["timeout"]; exists {
		s, ok := timeout.(string)
		if !ok {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "api.timeout",
				Message: "timeout must be a duration string such as \"1s\"",
			})
			return
		}
		if d, err := time.ParseDuration(s); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "api.timeout",
				Message: fmt.Sprintf("invalid duration '%s': %v", s, err),
			})
		} else if d <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "api.timeout",
				Message: "timeout must be positive",
			})
		} else if d > time.Minute {
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    "api.timeout",
				Message: fmt.Sprintf("timeout of %s is unusually long for interactive requests", d),
			})
		}
	}
}

// validateSessionStructure checks the session section
func validateSessionStructure(rawConfig map[string]any, result *ValidationResult) {
	rawSession, exists := rawConfig["session"]
	if !exists {
		return
	}
	session, ok := rawSession.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "session",
			Message: "session must be an object",
		})
		return
	}
	for _, key := range []string{"retainPassword", "invalidateOnUnauthorized"} {
		if v, exists := session[key]; exists {
			if _, isBool := v.(bool); !isBool {
				result.Errors = append(result.Errors, ValidationError{
					Path:    "session." + key,
					Message: fmt.Sprintf("%s must be a boolean", key),
				})
			}
		}
	}
	if retain, _ := session["retainPassword"].(bool); retain {
		result.Warnings = append(result.Warnings, ValidationError{
			Path:    "session.retainPassword",
			Message: "retainPassword keeps the plaintext password in memory for the life of the process",
		})
	}
}

// validateCredentialsStructure checks the credentials section
func validateCredentialsStructure(rawConfig map[string]any, result *ValidationResult) {
	rawCreds, exists := rawConfig["credentials"]
	if !exists {
		return
	}
	creds, ok := rawCreds.(map[string]any)
	if !ok {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "credentials",
			Message: "credentials must be an object",
		})
		return
	}
	if _, exists := creds["username"]; !exists {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "credentials.username",
			Message: "username is required",
		})
	}
	password, exists := creds["password"]
	if !exists {
		result.Errors = append(result.Errors, ValidationError{
			Path:    "credentials.password",
			Message: "password is required",
		})
		return
	}
	if verr := validateEnvVarReference(password, "password", "credentials.password"); verr != nil {
		result.Errors = append(result.Errors, *verr)
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		// Plain string values are never echoed back since they are secrets
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
