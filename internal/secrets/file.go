package secrets

import (
	"context"
	"fmt"

	"libreminder/pkg/configutil"
)

// FileStore serves secrets from a json5 object of name to value, a .local
// variant of the file overrides it.
type FileStore struct {
	values map[string]string
}

func NewFileStore(path string) (FileStore, error) {
	values, err := configutil.ReadConfig[map[string]string](path)
	if err != nil {
		return FileStore{}, fmt.Errorf("read secrets file: %w", err)
	}
	return FileStore{values: values}, nil
}

func (s FileStore) Secret(_ context.Context, name string) (string, error) {
	value, ok := s.values[name]
	if !ok || value == "" {
		return "", notFound(name)
	}
	return value, nil
}
