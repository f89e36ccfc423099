package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/spigell/matchai/internal/failure"
)

// Source describes where a secret may come from. The first non-empty of File, Value and Env
// wins.
type Source struct {
	// Name is used in error messages, e.g. "database dsn".
	Name string
	// Value is an inline value from the config file or a bound environment variable.
	Value string
	// File points to a file holding the value, as mounted by docker or kubernetes secrets.
	File string
	// Env names an environment variable consulted last.
	Env string
}

// Load resolves the secret and trims it. A missing or empty secret is a configuration failure.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", failure.Configuration(fmt.Errorf("reading %s from file %q: %w", name, file, err))
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", failure.Configurationf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if src.Env != "" {
		if secret := strings.TrimSpace(os.Getenv(src.Env)); secret != "" {
			return secret, nil
		}
		return "", failure.Configurationf("%s is not configured (set %s)", name, src.Env)
	}

	return "", failure.Configurationf("%s is not configured", name)
}

// Optional is Load for secrets a backend can run without, like a local Redis password.
func Optional(src Source) (string, error) {
	secret, err := Load(src)
	if err != nil && strings.TrimSpace(src.File) == "" {
		return "", nil
	}
	return secret, err
}

// Mask hides a configured secret in logged configuration.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
