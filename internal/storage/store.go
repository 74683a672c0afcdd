package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrTemplateNotFound is returned when a template artifact does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateStore loads template artifacts by id.
type TemplateStore interface {
	Load(ctx context.Context, templateID string) ([]byte, error)
}

// LocalStore reads templates from a directory on disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Load(ctx context.Context, templateID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(templateID)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", templateID, err)
	}

	return content, nil
}

func (s *LocalStore) resolve(templateID string) (string, error) {
	if templateID == "" || strings.ContainsAny(templateID, `/\`) || templateID == "." || templateID == ".." {
		return "", fmt.Errorf("invalid template id %q", templateID)
	}
	return filepath.Join(s.dir, templateID), nil
}
