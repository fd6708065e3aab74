package backend_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	"github.com/systmms/multicloud/pkg/environment"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// stubBackend records which factory produced it.
type stubBackend struct {
	name string
}

func (s *stubBackend) Name() string                              { return s.name }
func (s *stubBackend) Secret(name string) (backend.Secret, error) { return nil, nil }
func (s *stubBackend) Object(key string) (backend.Object, error)  { return nil, nil }

func stubFactory(name string) backend.Factory {
	return func(h backend.Host, cfg *config.Config) (backend.Backend, error) {
		return &stubBackend{name: name}, nil
	}
}

func newRegistry() *backend.Registry {
	r := backend.NewRegistry()
	r.Register("local", stubFactory("local"))
	r.Register("aws", stubFactory("aws"))
	r.Register("acme.plugin", stubFactory("acme.plugin"))
	return r
}

func TestRegistryDispatch(t *testing.T) {
	t.Parallel()

	host := backend.Host{Service: "svc", Environment: environment.New(map[string]string{"KIND": "aws"})}

	tests := []struct {
		name    string
		section map[string]interface{}
		want    string
		wantErr string
	}{
		{"default_type", map[string]interface{}{}, "local", ""},
		{"explicit", map[string]interface{}{"type": "aws"}, "aws", ""},
		{"interpolated_type", map[string]interface{}{"type": "${env.KIND}"}, "aws", ""},
		{"library_fallback", map[string]interface{}{"type": "acme", "library": "acme.plugin"}, "acme.plugin", ""},
		{"unknown_type", map[string]interface{}{"type": "ftp"}, "", "unsupported backend type"},
		{"unknown_library", map[string]interface{}{"type": "ftp", "library": "ftp.plugin"}, "", "library is not registered"},
	}

	r := newRegistry()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := r.Create(host, config.New(tt.section))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, mcerrors.IsConfiguration(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestRegistrySupportedTypes(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	assert.Equal(t, []string{"acme.plugin", "aws", "local"}, r.SupportedTypes())
	assert.True(t, r.IsSupported("aws"))
	assert.False(t, r.IsSupported(""))

	r.Register("aws", stubFactory("replaced"))
	b, err := r.Create(backend.Host{}, config.New(map[string]interface{}{"type": "aws"}))
	require.NoError(t, err)
	assert.Equal(t, "replaced", b.Name())
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		wantErr bool
	}{
		{"a", false},
		{"a/b/c", false},
		{"reports/2024.csv", false},
		{"/etc/passwd", true},
		{"/", true},
		{"", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			err := backend.ValidateKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, mcerrors.IsInvalidKey(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValueCodec(t *testing.T) {
	t.Parallel()

	text, err := backend.EncodeValue(map[string]interface{}{"user": "k", "port": 5432})
	require.NoError(t, err)

	value, err := backend.DecodeValue(text)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"user": "k", "port": float64(5432)}, value)

	_, err = backend.EncodeValue(make(chan int))
	assert.Error(t, err)

	_, err = backend.DecodeValue("{not json")
	assert.Error(t, err)
}

// memSecret and memObject are minimal in-memory accessors for helper tests.
type memSecret struct{ value interface{} }

func (m *memSecret) Name() string                                   { return "mem" }
func (m *memSecret) Get(ctx context.Context) (interface{}, error)   { return m.value, nil }
func (m *memSecret) Set(ctx context.Context, v interface{}) error   { m.value = v; return nil }

type memObject struct{ data []byte }

func (m *memObject) Key() string                                        { return "mem" }
func (m *memObject) PutBytes(ctx context.Context, data []byte) error    { m.data = data; return nil }
func (m *memObject) GetBytes(ctx context.Context) ([]byte, error)       { return m.data, nil }
func (m *memObject) PutFile(ctx context.Context) (io.WriteCloser, error) { return nil, nil }
func (m *memObject) GetFile(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}
func (m *memObject) Exists(ctx context.Context) (bool, error) { return m.data != nil, nil }

func TestDecodeInto(t *testing.T) {
	t.Parallel()

	s := &memSecret{value: map[string]interface{}{"username": "kevin", "port": float64(22)}}

	var creds struct {
		Username string `json:"username"`
		Port     int    `json:"port"`
	}
	require.NoError(t, backend.DecodeInto(context.Background(), s, &creds))
	assert.Equal(t, "kevin", creds.Username)
	assert.Equal(t, 22, creds.Port)
}

func TestTextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	o := &memObject{}
	require.NoError(t, backend.PutText(ctx, o, "hi"))
	got, err := backend.GetText(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}
