package env

import "os"

// Get reads an environment variable, returning fallback when it is unset or
// empty.
func Get(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
