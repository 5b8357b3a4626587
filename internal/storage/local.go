package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores uploaded documents on the local filesystem under a single
// root directory. Paths handed out and accepted are relative to that root.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &Local{root: root}, nil
}

func (l *Local) Upload(ctx context.Context, path string, data []byte) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o600)
}

func (l *Local) Download(ctx context.Context, path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full) // #nosec G304 -- path is validated against the storage root
}

func (l *Local) resolve(path string) (string, error) {
	full := filepath.Clean(filepath.Join(l.root, path))
	if !strings.HasPrefix(full, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}
