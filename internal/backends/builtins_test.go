package backends_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/pkg/backend"
)

func TestRegisterBuiltinsDispatch(t *testing.T) {
	t.Parallel()

	r := backend.NewRegistry()
	backends.RegisterBuiltins(r)
	assert.Equal(t, []string{"aws", "local", "nas", "portable", "tinyserver"}, r.SupportedTypes())

	dir := t.TempDir()
	tests := []struct {
		section map[string]interface{}
		want    interface{}
	}{
		{map[string]interface{}{}, &backends.LocalBackend{}},
		{map[string]interface{}{"type": "local", "basedir": dir}, &backends.LocalBackend{}},
		{map[string]interface{}{"type": "portable", "fernet_password": "pw", "keyring_path": filepath.Join(dir, "v.json")}, &backends.PortableBackend{}},
		{map[string]interface{}{"type": "nas", "server": "nas.local"}, &backends.NASBackend{}},
		{map[string]interface{}{"type": "tinyserver", "url": "http://sidecar:8700"}, &backends.TinyServerBackend{}},
		{map[string]interface{}{"type": "aws", "Region": "us-east-1", "creds": "static", "AccessKeyId": "a", "SecretAccessKey": "b"}, &backends.AWSBackend{}},
	}

	for _, tt := range tests {
		b, err := r.Create(testHost(nil), section(tt.section))
		require.NoError(t, err, "%v", tt.section)
		assert.IsType(t, tt.want, b)
	}
}

func TestTinyServerURLDefaults(t *testing.T) {
	t.Parallel()

	b, err := backends.NewTinyServerFromConfig(testHost(map[string]string{"MULTICLOUD_TINYSERVER_URL": "http://host.docker.internal:9000"}), section(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://host.docker.internal:9000", b.(*backends.TinyServerBackend).URL())

	b, err = backends.NewTinyServerFromConfig(testHost(map[string]string{"MULTICLOUD_TINYSERVER_URL": ""}), section(nil))
	require.Error(t, err)
	assert.Nil(t, b)

	_, err = backends.NewTinyServerFromConfig(testHost(nil), section(map[string]interface{}{"url": "not a url"}))
	assert.Error(t, err)
}
