// Package backend defines the capability interfaces implemented by every
// multicloud storage backend.
//
// A Backend is a factory for two kinds of accessor:
//
//   - Secret: a JSON-serializable value stored under a name, scoped to the
//     service that owns the Context.
//   - Object: an opaque byte blob stored under a relative, "/"-delimited key.
//
// Accessors are cheap, freshly constructed values bound to the backend's
// static configuration. Backends do not cache accessors or couple requests,
// except where a variant documents its own cache.
//
// # Implementing a Backend
//
// Implement Backend, Secret and Object directly, then register a Factory
// for a type tag:
//
//	registry.Register("minio", func(h backend.Host, cfg *config.Config) (backend.Backend, error) {
//	    bucket, err := cfg.GetString(h.Environment, "bucket", "")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &MinioBackend{bucket: bucket}, nil
//	})
//
// Factories validate their mandatory settings and return a
// ConfigurationError for anything missing.
package backend

import (
	"context"
	"io"

	"github.com/systmms/multicloud/pkg/environment"
	"github.com/systmms/multicloud/pkg/network"
)

// Backend is a concrete storage provider bound to one service.
type Backend interface {
	// Name returns the backend type tag, e.g. "local" or "aws".
	Name() string

	// Secret returns an accessor for the named secret.
	Secret(name string) (Secret, error)

	// Object returns an accessor for the object at key. Keys starting with
	// "/" are rejected with an InvalidKeyError before any I/O.
	Object(key string) (Object, error)
}

// Secret reads and writes one JSON-serializable value.
type Secret interface {
	Name() string

	// Get returns the decoded JSON value. An absent secret yields a
	// NotFoundError; an unreadable vault entry yields a DecryptionError.
	Get(ctx context.Context) (interface{}, error)

	// Set replaces the stored value.
	Set(ctx context.Context, value interface{}) error
}

// Object reads and writes one opaque blob. Writes replace the whole value.
type Object interface {
	Key() string

	PutBytes(ctx context.Context, data []byte) error
	GetBytes(ctx context.Context) ([]byte, error)

	// PutFile opens a stream whose contents are committed to the backend
	// only when Close returns successfully.
	PutFile(ctx context.Context) (io.WriteCloser, error)

	// GetFile opens a stream over the stored value. Callers must Close it.
	GetFile(ctx context.Context) (io.ReadCloser, error)

	Exists(ctx context.Context) (bool, error)
}

// Host carries what a Factory needs from the owning Context.
type Host struct {
	Service     string
	Environment *environment.Environment
	Network     *network.Network
}
