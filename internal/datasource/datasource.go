// Package datasource defines where extraction reads raw bytes from. Backends
// live in subpackages: file (local disk) and httpds (HTTP with retries). The
// object store package provides an s3:// source.
package datasource

import (
	"context"
	"io"

	"oif/internal/oiferr"
)

// Source opens a stream of raw source bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadAll opens src and reads it fully. Any failure is an ExternalIO error.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, oiferr.IO("open source", err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, oiferr.IO("read source", err)
	}
	return b, nil
}
