// Package storage holds user-requested export artifacts: muxed WAV
// audio files and JSON report bundles. Analysis state itself is never
// persisted; only explicit exports land here.
package storage

import (
	"context"
	"io"
)

// FileStore abstracts the backing store for exported artifacts.
//
// Paths are forward-slash separated, relative to the store root.
// Implementations must be safe for concurrent use. Reads of missing
// files return an error wrapping os.ErrNotExist; deletes of missing
// files succeed.
type FileStore interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string) (io.WriteCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
