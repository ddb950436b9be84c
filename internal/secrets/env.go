package secrets

import (
	"context"
	"os"

	"github.com/joho/godotenv"
)

// EnvStore reads secrets from the process environment, falling back to values
// loaded from dotenv files. A name is looked up verbatim and as its upper snake
// case form with the prefix.
type EnvStore struct {
	prefix string
	dotenv map[string]string
}

// NewEnvStore loads the given dotenv files, files that do not exist are skipped.
func NewEnvStore(prefix string, files ...string) (EnvStore, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	dotenv := map[string]string{}
	if len(existing) > 0 {
		values, err := godotenv.Read(existing...)
		if err != nil {
			return EnvStore{}, err
		}
		dotenv = values
	}
	return EnvStore{prefix: prefix, dotenv: dotenv}, nil
}

func (s EnvStore) lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value, true
	}
	value, ok := s.dotenv[key]
	return value, ok && value != ""
}

func (s EnvStore) Secret(_ context.Context, name string) (string, error) {
	for _, key := range []string{name, s.prefix + envName(name)} {
		if value, ok := s.lookup(key); ok {
			return value, nil
		}
	}
	return "", notFound(name)
}
