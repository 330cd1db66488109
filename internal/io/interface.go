package io

import (
	"context"
	"io"
)

// BlobIO is the raw byte layer of the local blob backend.
type BlobIO interface {
	// WriteBlob makes filename appear in the data directory only once every
	// byte of r has been written and synced.
	WriteBlob(ctx context.Context, filename string, r io.Reader) (int64, error)
	OpenBlob(filename string) (io.ReadCloser, error)
	RemoveBlob(filename string) error
	GetStoragePath() string
}
