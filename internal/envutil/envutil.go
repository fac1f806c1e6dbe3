package envutil

import (
	"os"
	"strings"
)

// EnvVar selects the deployment environment
const EnvVar = "WISHLIST_ENV"

// IsDev checks if we're running against a local development backend,
// where plain-http API endpoints are expected
func IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar))) {
	case "development", "dev", "local":
		return true
	default:
		return false
	}
}
