package metrics

import (
	"context"
	"io"
	"time"

	"github.com/systmms/multicloud/pkg/backend"
)

// Secret wraps a backend.Secret and records each call.
type Secret struct {
	backend.Secret
	backendName string
}

// InstrumentSecret returns s wrapped with operation metrics.
func InstrumentSecret(backendName string, s backend.Secret) *Secret {
	return &Secret{Secret: s, backendName: backendName}
}

// Get implements backend.Secret.
func (s *Secret) Get(ctx context.Context) (interface{}, error) {
	start := time.Now()
	v, err := s.Secret.Get(ctx)
	Record(s.backendName, KindSecret, "get", err, time.Since(start))
	return v, err
}

// Set implements backend.Secret.
func (s *Secret) Set(ctx context.Context, value interface{}) error {
	start := time.Now()
	err := s.Secret.Set(ctx, value)
	Record(s.backendName, KindSecret, "set", err, time.Since(start))
	return err
}

// Object wraps a backend.Object and records each call. Streaming writes
// are recorded when the stream is closed.
type Object struct {
	backend.Object
	backendName string
}

// InstrumentObject returns o wrapped with operation metrics.
func InstrumentObject(backendName string, o backend.Object) *Object {
	return &Object{Object: o, backendName: backendName}
}

func (o *Object) record(op string, err error, start time.Time) {
	Record(o.backendName, KindObject, op, err, time.Since(start))
}

// PutBytes implements backend.Object.
func (o *Object) PutBytes(ctx context.Context, data []byte) error {
	start := time.Now()
	err := o.Object.PutBytes(ctx, data)
	o.record("put_bytes", err, start)
	return err
}

// GetBytes implements backend.Object.
func (o *Object) GetBytes(ctx context.Context) ([]byte, error) {
	start := time.Now()
	data, err := o.Object.GetBytes(ctx)
	o.record("get_bytes", err, start)
	return data, err
}

// PutFile implements backend.Object.
func (o *Object) PutFile(ctx context.Context) (io.WriteCloser, error) {
	start := time.Now()
	w, err := o.Object.PutFile(ctx)
	if err != nil {
		o.record("put_file", err, start)
		return nil, err
	}
	return &recordingWriter{WriteCloser: w, obj: o, start: start}, nil
}

// GetFile implements backend.Object.
func (o *Object) GetFile(ctx context.Context) (io.ReadCloser, error) {
	start := time.Now()
	r, err := o.Object.GetFile(ctx)
	o.record("get_file", err, start)
	return r, err
}

// Exists implements backend.Object.
func (o *Object) Exists(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := o.Object.Exists(ctx)
	o.record("exists", err, start)
	return ok, err
}

type recordingWriter struct {
	io.WriteCloser
	obj    *Object
	start  time.Time
	closed bool
}

// Abort forwards to the wrapped stream.
func (w *recordingWriter) Abort() error {
	w.closed = true
	return backend.Abort(w.WriteCloser)
}

func (w *recordingWriter) Close() error {
	err := w.WriteCloser.Close()
	if !w.closed {
		w.closed = true
		w.obj.record("put_file", err, w.start)
	}
	return err
}
