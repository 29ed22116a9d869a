package instance

import (
	"os"

	"github.com/innocapforge/forge-backend/pkg/env"
)

var idEnvVars = []string{"FORGE_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID names the running process in logs and cron lock ownership. It falls
// back to the OS hostname and finally "local".
func ID() string {
	for _, key := range idEnvVars {
		if v := env.Get(key, ""); v != "" {
			return v
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
