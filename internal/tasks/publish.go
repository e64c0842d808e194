package tasks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FilePublisher keeps the latest task status in a JSON file.
type FilePublisher struct {
	path string
}

// NewFilePublisher returns a publisher writing to path, creating its
// directory on first publish.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

func (p *FilePublisher) Path() string {
	return p.path
}

// Publish replaces the status file. Failures are logged, a status file is
// never allowed to fail the task.
func (p *FilePublisher) Publish(_ context.Context, state State, status []byte) {
	if err := p.write(status); err != nil {
		slog.Warn("Failed to write task status", "path", p.path, "state", state, "error", err)
	}
}

func (p *FilePublisher) write(status []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create status dir")
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, append(status, '\n'), 0o600); err != nil {
		return errors.Wrap(err, "write status")
	}

	return errors.Wrap(os.Rename(tmp, p.path), "rename status")
}

// LogPublisher logs each status update at debug level.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, state State, status []byte) {
	slog.Debug("Task status", "state", state, "status", string(status))
}

// MultiPublisher fans status updates out to several publishers.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, state State, status []byte) {
	for _, p := range m {
		p.Publish(ctx, state, status)
	}
}
