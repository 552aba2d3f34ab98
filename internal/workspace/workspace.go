package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

// Workspace is a caller-owned scratch directory for one pipeline invocation.
// Every invocation gets its own directory, so two runs never share
// intermediate files. The caller must Close it on every exit path.
type Workspace struct {
	root   string
	closed bool
}

// New creates a fresh workspace under the system temp directory
func New() (*Workspace, error) {
	root, err := os.MkdirTemp("", "bundlesigner-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root directory
func (w *Workspace) Root() string {
	return w.root
}

// Path joins path elements onto the workspace root
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// Mkdir creates a subdirectory of the workspace and returns its path
func (w *Workspace) Mkdir(name string) (string, error) {
	dir := w.Path(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Close removes the workspace and everything in it. Calling Close more than
// once is a no-op.
func (w *Workspace) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := os.RemoveAll(w.root); err != nil {
		return &models.ToolError{
			Type:    models.ErrCleanup,
			Subject: w.root,
			Err:     err,
		}
	}
	return nil
}
