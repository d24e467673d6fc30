// Package instance names the running replica for log correlation.
package instance

import (
	"os"

	"github.com/angelmondragon/linkedge-backend/pkg/env"
)

// GetID returns LINKEDGE_INSTANCE_ID, then the platform dyno id, then the
// hostname, then "local".
func GetID() string {
	if id, ok := env.First("LINKEDGE_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
