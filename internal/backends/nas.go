package backends

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/studio-b12/gowebdav"

	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/network"
)

const (
	defaultWebDAVPort  = 5006
	defaultSSHPort     = 22
	defaultCredsSecret = "webdav"
	nasKeysDir         = ".keys"
	heredocMarker      = "XYZZY"
)

// NASSettings are the settings of a nas backend section.
type NASSettings struct {
	Server string
	// Port is the WebDAV port
	Port int
	// Scheme of the WebDAV endpoint, "https" unless overridden
	Scheme string
	// Root is a path prefix on the WebDAV share
	Root string
	// CredentialsSecret names the secret, stored on this same backend,
	// that holds {"username", "password"} for WebDAV
	CredentialsSecret string
	SSH               SSHSettings
}

// NASBackend stores secrets as files under .keys/<service> on a NAS over
// SSH and objects on the NAS WebDAV share.
type NASBackend struct {
	service  string
	settings NASSettings
	network  *network.Network
	cache    *SecretCache

	shellMu sync.Mutex
	shell   RemoteShell

	newWebDAV func(uri, user, password string) (WebDAVClient, error)
}

// NASOption is a functional option for NewNASBackend.
type NASOption func(*NASBackend)

// WithRemoteShell sets the transport used for secrets (for testing).
func WithRemoteShell(shell RemoteShell) NASOption {
	return func(b *NASBackend) {
		b.shell = shell
	}
}

// WithSecretCache replaces the process-wide secret cache.
func WithSecretCache(cache *SecretCache) NASOption {
	return func(b *NASBackend) {
		b.cache = cache
	}
}

// WithWebDAVClientFactory replaces the gowebdav client constructor.
func WithWebDAVClientFactory(fn func(uri, user, password string) (WebDAVClient, error)) NASOption {
	return func(b *NASBackend) {
		b.newWebDAV = fn
	}
}

// NewNASBackend creates a nas backend. The SSH connection and the WebDAV
// client are created on first use.
func NewNASBackend(service string, settings NASSettings, net *network.Network, opts ...NASOption) *NASBackend {
	if net == nil {
		net = network.Default()
	}
	b := &NASBackend{
		service:  service,
		settings: settings,
		network:  net,
		cache:    DefaultSecretCache,
	}
	b.newWebDAV = b.gowebdavClient
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ParseNASSettings reads and validates a nas backend section.
func ParseNASSettings(h backend.Host, cfg *config.Config) (NASSettings, error) {
	s := NASSettings{
		SSH: SSHSettings{Timeout: 30 * time.Second},
	}
	var err error

	if s.Server, err = cfg.GetString(h.Environment, "server", ""); err != nil {
		return NASSettings{}, err
	}
	if s.Server == "" {
		return NASSettings{}, mcerrors.ConfigurationError{
			Field:      cfg.Field("server"),
			Message:    "nas backend requires the 'server' setting",
			Suggestion: "Set 'server' to the NAS hostname",
		}
	}
	if s.Port, err = cfg.GetInt(h.Environment, "port", defaultWebDAVPort); err != nil {
		return NASSettings{}, err
	}
	if s.Scheme, err = cfg.GetString(h.Environment, "scheme", "https"); err != nil {
		return NASSettings{}, err
	}
	if s.Root, err = cfg.GetString(h.Environment, "root", ""); err != nil {
		return NASSettings{}, err
	}
	if s.CredentialsSecret, err = cfg.GetString(h.Environment, "secret", defaultCredsSecret); err != nil {
		return NASSettings{}, err
	}

	s.SSH.Server = s.Server
	if s.SSH.Port, err = cfg.GetInt(h.Environment, "ssh_port", defaultSSHPort); err != nil {
		return NASSettings{}, err
	}
	if s.SSH.User, err = cfg.GetString(h.Environment, "ssh_user", defaultSSHUser()); err != nil {
		return NASSettings{}, err
	}
	if s.SSH.KeyFile, err = cfg.GetString(h.Environment, "ssh_key", ""); err != nil {
		return NASSettings{}, err
	}
	if s.SSH.KnownHosts, err = cfg.GetString(h.Environment, "known_hosts", defaultKnownHosts()); err != nil {
		return NASSettings{}, err
	}
	s.SSH.KeyFile = expandHome(s.SSH.KeyFile)
	s.SSH.KnownHosts = expandHome(s.SSH.KnownHosts)
	return s, nil
}

// NewNASFromConfig is the Factory for type "nas".
func NewNASFromConfig(h backend.Host, cfg *config.Config) (backend.Backend, error) {
	settings, err := ParseNASSettings(h, cfg)
	if err != nil {
		return nil, err
	}
	return NewNASBackend(h.Service, settings, h.Network), nil
}

// Name implements backend.Backend.
func (b *NASBackend) Name() string {
	return TypeNAS
}

// Secret implements backend.Backend. Names that cannot be embedded safely
// in a quoted shell path are rejected.
func (b *NASBackend) Secret(name string) (backend.Secret, error) {
	if err := validateShellName(b.service); err != nil {
		return nil, err
	}
	if err := validateShellName(name); err != nil {
		return nil, err
	}
	return &NASSecret{backend: b, name: name}, nil
}

// Object implements backend.Backend. Keys may not leave the configured root.
func (b *NASBackend) Object(key string) (backend.Object, error) {
	if err := validateRootedKey(key); err != nil {
		return nil, err
	}
	return &NASObject{backend: b, key: key}, nil
}

func (b *NASBackend) remoteShell() (RemoteShell, error) {
	b.shellMu.Lock()
	defer b.shellMu.Unlock()
	if b.shell != nil {
		return b.shell, nil
	}
	shell, err := NewSSHShell(b.settings.SSH)
	if err != nil {
		return nil, mcerrors.TransportError{Backend: TypeNAS, Op: "ssh connect", Err: err}
	}
	b.shell = shell
	return shell, nil
}

func (b *NASBackend) baseURL() string {
	u := url.URL{
		Scheme: b.settings.Scheme,
		Host:   b.settings.Server + ":" + strconv.Itoa(b.settings.Port),
	}
	return u.String()
}

func (b *NASBackend) gowebdavClient(uri, user, password string) (WebDAVClient, error) {
	transport, err := b.network.Transport()
	if err != nil {
		return nil, err
	}
	client := gowebdav.NewClient(uri, user, password)
	client.SetTransport(transport)
	return client, nil
}

// webdav resolves the share credentials through this backend's own
// secrets and returns a client.
func (b *NASBackend) webdav(ctx context.Context) (WebDAVClient, error) {
	secret, err := b.Secret(b.settings.CredentialsSecret)
	if err != nil {
		return nil, err
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := backend.DecodeInto(ctx, secret, &creds); err != nil {
		return nil, fmt.Errorf("failed to resolve webdav credentials from secret '%s': %w", b.settings.CredentialsSecret, err)
	}
	return b.newWebDAV(b.baseURL(), creds.Username, creds.Password)
}

func validateShellName(name string) error {
	if name == "" || name == "." || name == ".." {
		return mcerrors.InvalidKeyError{Key: name, Message: "name must not be empty or a relative path element"}
	}
	if strings.ContainsAny(name, "'/\\\n\r\x00") {
		return mcerrors.InvalidKeyError{Key: name, Message: "name must not contain quotes, slashes or line breaks"}
	}
	return nil
}

// NASSecret is a JSON file at .keys/<service>/<name> on the NAS, read and
// written through a remote shell. Reads go through the backend's
// SecretCache.
type NASSecret struct {
	backend *NASBackend
	name    string
}

// Name implements backend.Secret.
func (s *NASSecret) Name() string {
	return s.name
}

func (s *NASSecret) remotePath() string {
	return nasKeysDir + "/" + s.backend.service + "/" + s.name
}

// Get implements backend.Secret.
func (s *NASSecret) Get(ctx context.Context) (interface{}, error) {
	return s.backend.cache.Get(s.backend.service+"/"+s.name, func() (interface{}, error) {
		shell, err := s.backend.remoteShell()
		if err != nil {
			return nil, err
		}
		out, err := shell.Run(ctx, fmt.Sprintf("cat '%s'\necho $?", s.remotePath()))
		if err != nil {
			return nil, mcerrors.TransportError{Backend: TypeNAS, Op: "ssh get", Err: err}
		}
		body, status := splitExitStatus(out)
		if status != "0" || strings.TrimSpace(body) == "" {
			return nil, mcerrors.NotFoundError{Backend: TypeNAS, Kind: "secret", Key: s.remotePath()}
		}
		value, err := backend.DecodeValue(body)
		if err != nil {
			return nil, fmt.Errorf("secret file %s is not valid JSON: %w", s.remotePath(), err)
		}
		return value, nil
	})
}

// Set implements backend.Secret. The cache is not updated.
func (s *NASSecret) Set(ctx context.Context, value interface{}) error {
	text, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}
	shell, err := s.backend.remoteShell()
	if err != nil {
		return err
	}

	cmd := fmt.Sprintf("mkdir -p '%s/%s' && cat > '%s' <<'%s'\n%s\n%s\necho $?",
		nasKeysDir, s.backend.service, s.remotePath(), heredocMarker, text, heredocMarker)
	out, err := shell.Run(ctx, cmd)
	if err != nil {
		return mcerrors.TransportError{Backend: TypeNAS, Op: "ssh set", Err: err}
	}
	if _, status := splitExitStatus(out); status != "0" {
		return mcerrors.TransportError{
			Backend: TypeNAS,
			Op:      "ssh set",
			Err:     fmt.Errorf("unable to write secret '%s' (exit status %q)", s.remotePath(), status),
		}
	}
	return nil
}

// splitExitStatus separates command output from the trailing line printed
// by "echo $?".
func splitExitStatus(out string) (body, status string) {
	out = strings.TrimSuffix(out, "\n")
	idx := strings.LastIndex(out, "\n")
	if idx < 0 {
		return "", strings.TrimSpace(out)
	}
	return out[:idx], strings.TrimSpace(out[idx+1:])
}

// NASObject is a file on the NAS WebDAV share.
type NASObject struct {
	backend *NASBackend
	key     string

	mu     sync.Mutex
	client WebDAVClient
}

// Key implements backend.Object.
func (o *NASObject) Key() string {
	return o.key
}

func (o *NASObject) remotePath() string {
	return path.Join("/", o.backend.settings.Root, o.key)
}

func (o *NASObject) webdav(ctx context.Context) (WebDAVClient, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	client, err := o.backend.webdav(ctx)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

func (o *NASObject) mapError(op string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return mcerrors.NotFoundError{Backend: TypeNAS, Kind: "object", Key: o.key}
	}
	return mcerrors.TransportError{Backend: TypeNAS, Op: op, Err: err}
}

// PutBytes implements backend.Object.
func (o *NASObject) PutBytes(ctx context.Context, data []byte) error {
	client, err := o.webdav(ctx)
	if err != nil {
		return err
	}
	if err := client.Write(o.remotePath(), data, 0644); err != nil {
		return o.mapError("webdav put", err)
	}
	return nil
}

// GetBytes implements backend.Object.
func (o *NASObject) GetBytes(ctx context.Context) ([]byte, error) {
	client, err := o.webdav(ctx)
	if err != nil {
		return nil, err
	}
	data, err := client.Read(o.remotePath())
	if err != nil {
		return nil, o.mapError("webdav get", err)
	}
	return data, nil
}

// PutFile buffers writes and uploads them on Close.
func (o *NASObject) PutFile(ctx context.Context) (io.WriteCloser, error) {
	client, err := o.webdav(ctx)
	if err != nil {
		return nil, err
	}
	return &bufferedUpload{commit: func(data []byte) error {
		if err := client.WriteStream(o.remotePath(), bytes.NewReader(data), 0644); err != nil {
			return o.mapError("webdav put", err)
		}
		return nil
	}}, nil
}

// GetFile implements backend.Object.
func (o *NASObject) GetFile(ctx context.Context) (io.ReadCloser, error) {
	client, err := o.webdav(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.ReadStream(o.remotePath())
	if err != nil {
		return nil, o.mapError("webdav get", err)
	}
	return r, nil
}

// Exists implements backend.Object.
func (o *NASObject) Exists(ctx context.Context) (bool, error) {
	client, err := o.webdav(ctx)
	if err != nil {
		return false, err
	}
	if _, err := client.Stat(o.remotePath()); err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, nil
		}
		return false, mcerrors.TransportError{Backend: TypeNAS, Op: "webdav stat", Err: err}
	}
	return true, nil
}
