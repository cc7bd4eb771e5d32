// Package file implements local filesystem sources: single spreadsheets to
// extract from, and line-based list files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one file from local disk.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path is the file the source reads.
func (l *Local) Path() string { return l.path }

// Open returns the file for reading. A context that is already done returns
// its error without touching the filesystem; filesystem errors keep their
// identity for errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
