package storage

import (
	"context"
	"io"
)

// ReportArchive is the retention surface for orchestration artifacts. The
// coverage auditor uploads its daily summaries here; dashboards and support
// tooling read them back by key.
type ReportArchive interface {
	// Upload stores an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download fetches an object by key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for an object.
	GetURL(key string) string
}
