package backends_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/internal/testutil"
	"github.com/systmms/multicloud/pkg/backend"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/network"
)

// remoteFiles emulates the shell commands the nas backend sends.
type remoteFiles struct {
	mu    sync.Mutex
	files map[string]string
}

func newRemoteFiles(initial map[string]string) *remoteFiles {
	files := make(map[string]string)
	for k, v := range initial {
		files[k] = v
	}
	return &remoteFiles{files: files}
}

func quoted(cmd, prefix string) string {
	rest := cmd[strings.Index(cmd, prefix)+len(prefix):]
	return rest[:strings.Index(rest, "'")]
}

func (r *remoteFiles) handle(cmd string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case strings.HasPrefix(cmd, "cat '"):
		content, ok := r.files[quoted(cmd, "cat '")]
		if !ok {
			return "1\n", nil
		}
		return content + "\n0\n", nil
	case strings.HasPrefix(cmd, "mkdir -p '"):
		path := quoted(cmd, "cat > '")
		body := cmd[strings.Index(cmd, "\n")+1 : strings.Index(cmd, "\nXYZZY\n")]
		r.files[path] = body
		return "0\n", nil
	}
	return "127\n", nil
}

func (r *remoteFiles) get(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.files[path]
	return v, ok
}

func newNAS(t *testing.T, shell *testutil.FakeShell, settings backends.NASSettings) *backends.NASBackend {
	t.Helper()
	if settings.Server == "" {
		settings.Server = "nas.local"
	}
	if settings.CredentialsSecret == "" {
		settings.CredentialsSecret = "webdav"
	}
	return backends.NewNASBackend("svc", settings, network.Default(),
		backends.WithRemoteShell(shell),
		backends.WithSecretCache(backends.NewSecretCache()),
	)
}

func TestNASSecretCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	files := newRemoteFiles(map[string]string{".keys/svc/db": `{"user":"k"}`})
	shell := &testutil.FakeShell{Handler: files.handle}
	b := newNAS(t, shell, backends.NASSettings{})

	got, err := mustSecret(t, b, "db").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"user": "k"}, got)
	assert.Equal(t, 1, shell.CallCount())
	assert.Equal(t, "cat '.keys/svc/db'\necho $?", shell.Commands[0])

	// served from the cache, even through a new accessor and after a
	// remote change
	files.files[".keys/svc/db"] = `{"user":"changed"}`
	got, err = mustSecret(t, b, "db").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"user": "k"}, got)
	assert.Equal(t, 1, shell.CallCount())
}

func TestNASSecretCacheConcurrentFirstFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	files := newRemoteFiles(map[string]string{".keys/svc/db": `"v"`})
	shell := &testutil.FakeShell{Handler: func(cmd string) (string, error) {
		<-release
		return files.handle(cmd)
	}}
	b := newNAS(t, shell, backends.NASSettings{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := b.Secret("db")
			if err != nil {
				return
			}
			_, _ = s.Get(context.Background())
		}()
	}
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, shell.CallCount(), 8)
	got, err := mustSecret(t, b, "db").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNASSecretNotFoundIsNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	files := newRemoteFiles(nil)
	shell := &testutil.FakeShell{Handler: files.handle}
	b := newNAS(t, shell, backends.NASSettings{})

	_, err := mustSecret(t, b, "db").Get(ctx)
	assert.True(t, mcerrors.IsNotFound(err))

	require.NoError(t, mustSecret(t, b, "db").Set(ctx, map[string]interface{}{"user": "k"}))
	stored, ok := files.get(".keys/svc/db")
	require.True(t, ok)
	assert.JSONEq(t, `{"user":"k"}`, stored)
	assert.True(t, strings.HasPrefix(shell.Commands[1], "mkdir -p '.keys/svc' && cat > '.keys/svc/db' <<'XYZZY'\n"))

	got, err := mustSecret(t, b, "db").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"user": "k"}, got)
}

func TestNASSecretSetFailure(t *testing.T) {
	t.Parallel()

	shell := &testutil.FakeShell{Handler: func(string) (string, error) { return "1\n", nil }}
	b := newNAS(t, shell, backends.NASSettings{})
	err := mustSecret(t, b, "db").Set(context.Background(), "v")
	require.Error(t, err)
	assert.True(t, mcerrors.IsTransport(err))
}

func TestNASSecretNameValidation(t *testing.T) {
	t.Parallel()

	shell := &testutil.FakeShell{}
	b := newNAS(t, shell, backends.NASSettings{})

	for _, name := range []string{"", "..", "a/b", "it's", "two\nlines", `back\slash`} {
		_, err := b.Secret(name)
		assert.True(t, mcerrors.IsInvalidKey(err), "%q", name)
	}
	assert.Zero(t, shell.CallCount())
}

func TestParseNASSettings(t *testing.T) {
	t.Parallel()

	_, err := backends.ParseNASSettings(testHost(nil), section(map[string]interface{}{"type": "nas"}))
	assert.True(t, mcerrors.IsConfiguration(err))

	s, err := backends.ParseNASSettings(testHost(map[string]string{"NAS": "drive.example"}), section(map[string]interface{}{
		"server":   "${env.NAS}",
		"secret":   "nas-creds",
		"ssh_user": "backup",
	}))
	require.NoError(t, err)
	assert.Equal(t, "drive.example", s.Server)
	assert.Equal(t, 5006, s.Port)
	assert.Equal(t, "https", s.Scheme)
	assert.Equal(t, "nas-creds", s.CredentialsSecret)
	assert.Equal(t, "drive.example", s.SSH.Server)
	assert.Equal(t, 22, s.SSH.Port)
	assert.Equal(t, "backup", s.SSH.User)
}

func newWebDAVServer(t *testing.T, user, password string) (*httptest.Server, string, int) {
	t.Helper()
	handler := &webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="nas"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portText, err := net.SplitHostPort(parsed.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)
	return srv, host, port
}

func TestNASObjectOverWebDAV(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, host, port := newWebDAVServer(t, "kevin", "s3cret")
	files := newRemoteFiles(map[string]string{".keys/svc/webdav": `{"username":"kevin","password":"s3cret"}`})
	shell := &testutil.FakeShell{Handler: files.handle}
	b := newNAS(t, shell, backends.NASSettings{Server: host, Port: port, Scheme: "http", Root: "share"})

	o := mustObject(t, b, "a/b")
	exists, err := o.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = o.GetBytes(ctx)
	assert.True(t, mcerrors.IsNotFound(err))

	require.NoError(t, backend.PutText(ctx, o, "hi"))
	got, err := backend.GetText(ctx, mustObject(t, b, "a/b"))
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	w, err := o.PutFile(ctx)
	require.NoError(t, err)
	_, err = io.WriteString(w, "streamed")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := o.GetFile(ctx)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "streamed", string(data))

	exists, err = o.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	// credentials were fetched once over the shell and then cached
	assert.Equal(t, 1, shell.CallCount())
}

func TestNASObjectMissingCredentials(t *testing.T) {
	t.Parallel()

	shell := &testutil.FakeShell{Handler: newRemoteFiles(nil).handle}
	b := newNAS(t, shell, backends.NASSettings{Server: "127.0.0.1", Port: 1, Scheme: "http"})

	_, err := mustObject(t, b, "k").GetBytes(context.Background())
	require.Error(t, err)
	assert.True(t, mcerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "webdav credentials")
}

func TestSecretCacheErrorsNotCached(t *testing.T) {
	t.Parallel()

	cache := backends.NewSecretCache()
	calls := 0
	_, err := cache.Get("k", func() (interface{}, error) {
		calls++
		return nil, mcerrors.NotFoundError{Key: "k"}
	})
	require.Error(t, err)
	v, err := cache.Get("k", func() (interface{}, error) {
		calls++
		return "v", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, cache.Len())
}

func TestNASObjectKeyStaysInsideRoot(t *testing.T) {
	t.Parallel()

	shell := &testutil.FakeShell{Handler: newRemoteFiles(nil).handle}
	b := newNAS(t, shell, backends.NASSettings{Root: "share"})

	tests := []struct {
		key     string
		wantErr bool
	}{
		{"a/b", false},
		{"a/../b", false},
		{"./a", false},
		{"..", true},
		{"../x", true},
		{"a/../../x", true},
		{"../../etc/passwd", true},
		{"/etc/passwd", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			_, err := b.Object(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, mcerrors.IsInvalidKey(err))
				return
			}
			assert.NoError(t, err)
		})
	}
	assert.Equal(t, 0, shell.CallCount())
}

func TestNASSecretEmptyFile(t *testing.T) {
	t.Parallel()

	files := newRemoteFiles(map[string]string{
		".keys/svc/empty":  "",
		".keys/svc/broken": "{not json",
	})
	b := newNAS(t, &testutil.FakeShell{Handler: files.handle}, backends.NASSettings{})

	_, err := mustSecret(t, b, "empty").Get(context.Background())
	require.Error(t, err)
	assert.True(t, mcerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), ".keys/svc/empty")

	_, err = mustSecret(t, b, "broken").Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret file .keys/svc/broken is not valid JSON")
}
