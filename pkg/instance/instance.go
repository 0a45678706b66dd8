package instance

import (
	"os"
	"strings"
)

// ID identifies this process in logs and lock ownership. SRMS_INSTANCE_ID
// wins, then the platform's dyno name, then the hostname.
func ID(service string) string {
	for _, key := range []string{"SRMS_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return service + "-0"
}
