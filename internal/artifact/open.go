package artifact

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Options selects and configures a Store.
type Options struct {
	Backend string
	Dir     string
	S3      S3Config
	// CacheSize bounds the Exists cache; a negative value disables it.
	CacheSize int
}

// Open builds the configured Store, wrapped with NewCached unless CacheSize
// is negative. Remote backends are checked before Open returns so that bad
// settings fail the run up front.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case BackendFile, "":
		store, err = NewFileStore(opts.Dir)
	case BackendS3:
		var s3 *S3Store
		if s3, err = NewS3Store(opts.S3); err == nil {
			err = s3.EnsureBucket(ctx)
			store = s3
		}
	case BackendMemory:
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.CacheSize < 0 {
		return store, nil
	}
	return NewCached(store, opts.CacheSize)
}
