// Package blobstore stores whole snapshot objects by name, either in a
// local directory or in an S3-compatible bucket.
package blobstore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = fmt.Errorf("blob %w", apperrors.ErrNotFound)

// Store reads and writes complete objects. Put must be atomic: a
// concurrent Get sees either the previous or the new content.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// New returns the store selected by cfg.Snapshot.Store.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Snapshot.Store {
	case "", "local":
		return NewLocal(cfg.Snapshot.Dir), nil
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.Snapshot.Store)
	}
}
