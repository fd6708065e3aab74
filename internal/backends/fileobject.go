package backends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/systmms/multicloud/pkg/backend"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// objectSuffix is appended to every key stored on the filesystem.
const objectSuffix = ".object"

// FileObject stores one object as <basedir>/<key>.object.
type FileObject struct {
	backendName string
	key         string
	basedir     string
}

func newFileObject(backendName, basedir, key string) (*FileObject, error) {
	if err := validateRootedKey(key); err != nil {
		return nil, err
	}
	return &FileObject{backendName: backendName, key: key, basedir: basedir}, nil
}

// validateRootedKey rejects keys that are absolute or that climb above the
// storage root once "." and ".." elements are resolved.
func validateRootedKey(key string) error {
	if err := backend.ValidateKey(key); err != nil {
		return err
	}
	rel := path.Clean(filepath.ToSlash(key))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return mcerrors.InvalidKeyError{Key: key, Message: "object key must stay inside the storage root"}
	}
	return nil
}

// Key implements backend.Object.
func (o *FileObject) Key() string {
	return o.key
}

// Path returns the file backing the object.
func (o *FileObject) Path() string {
	return filepath.Join(o.basedir, filepath.FromSlash(o.key)+objectSuffix)
}

func (o *FileObject) notFound() error {
	return mcerrors.NotFoundError{Backend: o.backendName, Kind: "object", Key: o.key}
}

// PutBytes implements backend.Object.
func (o *FileObject) PutBytes(ctx context.Context, data []byte) error {
	w, err := o.PutFile(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = backend.Abort(w)
		return fmt.Errorf("failed to write object %s: %w", o.key, err)
	}
	return w.Close()
}

// GetBytes implements backend.Object.
func (o *FileObject) GetBytes(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(o.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, o.notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", o.key, err)
	}
	return data, nil
}

// PutFile writes to a temporary file next to the target and renames it
// into place on Close.
func (o *FileObject) PutFile(ctx context.Context) (io.WriteCloser, error) {
	path := o.Path()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".put-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s for writing: %w", o.key, err)
	}
	return &fileWriter{File: tmp, target: path}, nil
}

// GetFile implements backend.Object.
func (o *FileObject) GetFile(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(o.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, o.notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", o.key, err)
	}
	return f, nil
}

// Exists implements backend.Object.
func (o *FileObject) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(o.Path())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type fileWriter struct {
	*os.File
	target string
	done   bool
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.File.Close(); err != nil {
		_ = os.Remove(w.File.Name())
		return err
	}
	if err := os.Rename(w.File.Name(), w.target); err != nil {
		_ = os.Remove(w.File.Name())
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

// Abort removes the temporary file without touching the target.
func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.File.Close()
	return os.Remove(w.File.Name())
}

// objectStore is shared by the backends that keep objects on disk. An
// empty basedir is reported when an object is requested.
type objectStore struct {
	backendName string
	basedir     string
}

func (s objectStore) object(key string) (backend.Object, error) {
	if s.basedir == "" {
		return nil, mcerrors.ConfigurationError{
			Field:      "backend.basedir",
			Message:    "object storage requires the 'basedir' setting",
			Suggestion: fmt.Sprintf("Add 'basedir' to the %s backend section", s.backendName),
		}
	}
	return newFileObject(s.backendName, s.basedir, key)
}
