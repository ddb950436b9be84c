// Package secrets fetches credentials and delivery addresses by name. Values
// never live in the configuration file, only their names do.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Store interface {
	// Secret returns the value stored under name, failing with
	// *SecretUnavailableError if it cannot be obtained.
	Secret(ctx context.Context, name string) (string, error)
}

// ErrNotFound is wrapped when a store has no value for a name.
var ErrNotFound = errors.New("secret not found")

type SecretUnavailableError struct {
	Name string
	Err  error
}

func (e *SecretUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("secret unavailable: %s: %s", e.Name, e.Err.Error())
	}
	return fmt.Sprintf("secret unavailable: %s", e.Name)
}

func (e *SecretUnavailableError) Unwrap() error {
	return e.Err
}

func notFound(name string) error {
	return &SecretUnavailableError{Name: name, Err: ErrNotFound}
}

// envName turns a secret name like "library.patron-id" into LIBRARY_PATRON_ID.
func envName(name string) string {
	var out strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
			continue
		}
		out.WriteByte('_')
	}
	return out.String()
}

// Chain tries each store in order and returns the first value found. Failures
// other than a missing secret are returned immediately.
type Chain []Store

func (c Chain) Secret(ctx context.Context, name string) (string, error) {
	for _, store := range c {
		value, err := store.Secret(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", notFound(name)
}
