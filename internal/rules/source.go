package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Provider hands out the rule table in force right now.
type Provider interface {
	Table() *Table
}

// Source holds the active rule table and swaps it when the backing file
// changes. Readers never block writers.
type Source struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Table]
}

// NewSource loads path, or the shipped table when path is empty.
func NewSource(path string, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{path: path, logger: logger}

	if path == "" {
		s.current.Store(Default())
		return s, nil
	}

	table, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(table)
	return s, nil
}

func (s *Source) Table() *Table {
	return s.current.Load()
}

// Reload re-reads the rule file. An invalid file leaves the active table in place.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	table, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(table)
	return nil
}

// Watch reloads the table whenever the rule file is written or replaced.
// It blocks until ctx is done.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rule watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch the directory.
	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	s.logger.Info("Watching rule file", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := s.Reload(); err != nil {
				s.logger.Warn("Rule file rejected, keeping previous table",
					zap.String("path", target),
					zap.Error(err),
				)
				continue
			}
			s.logger.Info("Rule table reloaded",
				zap.String("path", target),
				zap.Int("rules", len(s.Table().rules)),
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Rule watcher error", zap.Error(err))
		}
	}
}
