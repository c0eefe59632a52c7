// Package secrets resolves API credentials: environment variable first,
// OS keyring second. Secrets never live in the YAML config file.
package secrets

import (
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name all briefing secrets are stored under.
const Service = "morningbrief"

// Resolve returns the secret from the environment variable when set,
// otherwise from the OS keyring entry (Service, user). Returns an error
// only when neither source has it.
func Resolve(envVar, user string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	v, err := keyring.Get(Service, user)
	if err != nil {
		return "", fmt.Errorf("secret %s: not in env and keyring lookup failed: %w", envVar, err)
	}
	return v, nil
}

// ResolveOptional is Resolve for secrets a run can proceed without; it
// returns the empty string instead of an error when the secret is absent.
func ResolveOptional(envVar, user string) string {
	v, err := Resolve(envVar, user)
	if err != nil {
		return ""
	}
	return v
}
