// File: internal/screenshot/screenshot.go

// Package screenshot writes failure captures to disk so an operator can see
// what the page looked like when a workflow went wrong.
package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Saver writes PNG captures into a fixed directory.
type Saver struct {
	dir    string
	logger *zap.Logger
}

// NewSaver creates the capture directory if needed.
func NewSaver(dir string, logger *zap.Logger) (*Saver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating screenshot directory %s: %w", dir, err)
	}
	return &Saver{dir: dir, logger: logger.Named("screenshot")}, nil
}

// Save writes the PNG bytes under a name derived from the label and the
// current time. Returns the written path.
func (s *Saver) Save(label string, png []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.png", sanitize(label), time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot %s: %w", path, err)
	}
	s.logger.Info("Screenshot saved.", zap.String("path", path))
	return path, nil
}

// Clear removes every previous capture. The fleet runner calls this at the
// start of a run so the directory only holds the current run's failures.
func (s *Saver) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading screenshot directory %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Warn("Failed to remove old screenshot.", zap.String("name", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

// sanitize turns an arbitrary label (usually an email) into a safe filename
// fragment.
func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}
