// Package objectstore uploads pipeline artifacts to object storage. The S3
// backend talks to AWS (or any S3-compatible endpoint); the local backend
// writes under a directory and backs dry runs and tests.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"oif/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("objectstore: object not found")

// DefaultACL is the canned ACL applied to S3 uploads.
const DefaultACL = "bucket-owner-full-control"

// Store is the minimal object storage surface the pipeline needs.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string, meta map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// New builds the store named by cfg.Kind.
func New(ctx context.Context, cfg config.Storage) (Store, error) {
	switch cfg.Kind {
	case "s3":
		return NewS3(ctx, cfg)
	case "local":
		return NewLocal(cfg.Dir)
	}
	return nil, fmt.Errorf("objectstore: unknown kind %q", cfg.Kind)
}
