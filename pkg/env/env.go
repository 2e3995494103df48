// Package env reads process environment values that sit outside the
// STOREFRONT_ config surface, such as deploy-injected overrides.
package env

import "os"

// Get returns the named environment variable, or fallback when it is unset
// or empty.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
