package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Files lists the dotenv files a binary should try to load, in order.
// FORGE_ENV_FILE may hold a comma separated list that overrides the default.
func Files() []string {
	raw := Get("FORGE_ENV_FILE", ".env")
	parts := strings.Split(raw, ",")
	files := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			files = append(files, p)
		}
	}
	return files
}
