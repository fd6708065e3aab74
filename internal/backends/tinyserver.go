package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/systmms/multicloud/internal/tinyserver"
	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/network"
)

// TinyServerBackend forwards every operation to a multicloud tiny server.
type TinyServerBackend struct {
	baseURL string
	client  *http.Client
}

// NewTinyServerBackend creates a client for the server at baseURL.
func NewTinyServerBackend(baseURL string, client *http.Client) *TinyServerBackend {
	return &TinyServerBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// NewTinyServerFromConfig is the Factory for type "tinyserver".
func NewTinyServerFromConfig(h backend.Host, cfg *config.Config) (backend.Backend, error) {
	def := h.Environment.Getenv(tinyserver.URLEnv, tinyserver.DefaultURL)
	base, err := cfg.GetString(h.Environment, "url", def)
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, mcerrors.ConfigurationError{
			Field:      cfg.Field("url"),
			Value:      base,
			Message:    "tinyserver url must be absolute",
			Suggestion: "e.g. " + tinyserver.DefaultURL,
		}
	}

	net := h.Network
	if net == nil {
		net = network.Default()
	}
	client, err := net.HTTPClient()
	if err != nil {
		return nil, err
	}
	return NewTinyServerBackend(base, client), nil
}

// Name implements backend.Backend.
func (b *TinyServerBackend) Name() string {
	return TypeTinyServer
}

// URL returns the server base URL.
func (b *TinyServerBackend) URL() string {
	return b.baseURL
}

// Secret implements backend.Backend.
func (b *TinyServerBackend) Secret(name string) (backend.Secret, error) {
	if err := backend.ValidateSecretName(name); err != nil {
		return nil, err
	}
	return &TinyServerSecret{backend: b, name: name}, nil
}

// Object implements backend.Backend.
func (b *TinyServerBackend) Object(key string) (backend.Object, error) {
	if err := backend.ValidateKey(key); err != nil {
		return nil, err
	}
	return &TinyServerObject{backend: b, key: key}, nil
}

func escapeSegments(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (b *TinyServerBackend) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, mcerrors.TransportError{Backend: TypeTinyServer, Op: method + " " + path, Err: err}
	}
	return resp, nil
}

// TinyServerSecret is a secret held by the server's backend.
type TinyServerSecret struct {
	backend *TinyServerBackend
	name    string
}

// Name implements backend.Secret.
func (s *TinyServerSecret) Name() string {
	return s.name
}

func (s *TinyServerSecret) path() string {
	return tinyserver.SecretsPrefix + url.PathEscape(s.name)
}

// Get implements backend.Secret.
func (s *TinyServerSecret) Get(ctx context.Context) (interface{}, error) {
	resp, err := s.backend.do(ctx, http.MethodGet, s.path(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, tinyserver.DecodeError(resp, TypeTinyServer, "secret", s.name)
	}
	var value interface{}
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid secret response: %w", err)
	}
	return value, nil
}

// Set implements backend.Secret.
func (s *TinyServerSecret) Set(ctx context.Context, value interface{}) error {
	text, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}
	resp, err := s.backend.do(ctx, http.MethodPut, s.path(), strings.NewReader(text))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return tinyserver.DecodeError(resp, TypeTinyServer, "secret", s.name)
	}
	return nil
}

// TinyServerObject is an object held by the server's backend.
type TinyServerObject struct {
	backend *TinyServerBackend
	key     string
}

// Key implements backend.Object.
func (o *TinyServerObject) Key() string {
	return o.key
}

func (o *TinyServerObject) path() string {
	return tinyserver.ObjectsPrefix + escapeSegments(o.key)
}

// PutBytes implements backend.Object.
func (o *TinyServerObject) PutBytes(ctx context.Context, data []byte) error {
	return o.put(ctx, bytes.NewReader(data))
}

func (o *TinyServerObject) put(ctx context.Context, body io.Reader) error {
	resp, err := o.backend.do(ctx, http.MethodPut, o.path(), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return tinyserver.DecodeError(resp, TypeTinyServer, "object", o.key)
	}
	return nil
}

// GetBytes implements backend.Object.
func (o *TinyServerObject) GetBytes(ctx context.Context) ([]byte, error) {
	r, err := o.GetFile(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// PutFile streams the body to the server; the server commits it when the
// request completes, which Close waits for.
func (o *TinyServerObject) PutFile(ctx context.Context) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &pipeUpload{pw: pw, done: make(chan error, 1)}
	go func() {
		err := o.put(ctx, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// GetFile implements backend.Object.
func (o *TinyServerObject) GetFile(ctx context.Context) (io.ReadCloser, error) {
	resp, err := o.backend.do(ctx, http.MethodGet, o.path(), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, tinyserver.DecodeError(resp, TypeTinyServer, "object", o.key)
	}
	return resp.Body, nil
}

// Exists implements backend.Object.
func (o *TinyServerObject) Exists(ctx context.Context) (bool, error) {
	resp, err := o.backend.do(ctx, http.MethodHead, o.path(), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, tinyserver.DecodeError(resp, TypeTinyServer, "object", o.key)
	}
}

type pipeUpload struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Abort cancels the upload so the server discards it.
func (u *pipeUpload) Abort() error {
	if u.closed {
		return nil
	}
	u.closed = true
	_ = u.pw.CloseWithError(errUploadAborted)
	<-u.done
	return nil
}

func (u *pipeUpload) Close() error {
	if u.closed {
		return u.err
	}
	u.closed = true
	_ = u.pw.Close()
	u.err = <-u.done
	return u.err
}

var errUploadAborted = errors.New("upload aborted")
