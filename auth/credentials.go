// Package auth resolves archive credentials.
//
// Username and password are each resolved through a source chain; the
// default chain reads the ENA_USER and ENA_PASSWORD environment variables.
// Credentials are read once per run and passed by value.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/synum-dev/synum/internal/errors"
)

const (
	// UserVar names the username environment variable.
	UserVar = "ENA_USER"
	// PasswordVar names the password environment variable.
	PasswordVar = "ENA_PASSWORD"
)

// Credentials are the archive account used for every submission.
type Credentials struct {
	Username string
	Password string
}

// String masks the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:%s", c.Username, strings.Repeat("*", min(len(c.Password), 8)))
}

// Source represents a source that can provide one credential field.
type Source interface {
	// Value returns the value from this source, or empty string if not available.
	Value() (string, error)

	// Name returns a human-readable name for this source.
	Name() string
}

// envSource reads a value from an environment variable.
type envSource struct {
	varName string
}

// EnvSource creates a Source that reads from the specified environment variable.
func EnvSource(varName string) Source {
	return &envSource{varName: varName}
}

func (s *envSource) Value() (string, error) {
	return strings.TrimSpace(os.Getenv(s.varName)), nil
}

func (s *envSource) Name() string {
	return fmt.Sprintf("environment variable %s", s.varName)
}

// DefaultUserSources returns the default username source chain.
func DefaultUserSources() []Source {
	return []Source{EnvSource(UserVar)}
}

// DefaultPasswordSources returns the default password source chain.
func DefaultPasswordSources() []Source {
	return []Source{EnvSource(PasswordVar)}
}

// GetCredentials resolves credentials using the default source chains.
func GetCredentials() (Credentials, error) {
	return GetCredentialsFromSources(DefaultUserSources(), DefaultPasswordSources())
}

// GetCredentialsFromSources resolves each field from the first source that
// provides a non-empty value. A missing field is a preflight error.
func GetCredentialsFromSources(user, password []Source) (Credentials, error) {
	var c Credentials
	var err error
	if c.Username, err = resolve(user); err != nil {
		return Credentials{}, err
	}
	if c.Password, err = resolve(password); err != nil {
		return Credentials{}, err
	}

	var missing []string
	if c.Username == "" {
		missing = append(missing, names(user)...)
	}
	if c.Password == "" {
		missing = append(missing, names(password)...)
	}
	if len(missing) > 0 {
		return Credentials{}, errors.Preflight("credentials not set: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func resolve(sources []Source) (string, error) {
	for _, source := range sources {
		v, err := source.Value()
		if err != nil {
			return "", errors.New(fmt.Errorf("error reading from %s: %w", source.Name(), err)).
				Category(errors.CategoryPreflight).
				Build()
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

func names(sources []Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Name())
	}
	return out
}
