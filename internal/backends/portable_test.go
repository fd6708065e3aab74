package backends_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/pkg/backend"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

func TestPortableSecrets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.json")

	b, err := backends.NewPortableFromConfig(testHost(nil), section(map[string]interface{}{
		"type":            "portable",
		"fernet_password": "pw",
		"keyring_path":    path,
	}))
	require.NoError(t, err)
	assert.Equal(t, backends.TypePortable, b.Name())

	s := mustSecret(t, b, "db")
	require.NoError(t, s.Set(ctx, map[string]interface{}{"user": "k"}))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"user": "k"}, got)

	_, err = mustSecret(t, b, "other").Get(ctx)
	assert.True(t, mcerrors.IsNotFound(err))

	wrong, err := backends.NewPortableFromConfig(testHost(nil), section(map[string]interface{}{
		"fernet_password": "wrong",
		"keyring_path":    path,
	}))
	require.NoError(t, err)
	_, err = mustSecret(t, wrong, "db").Get(ctx)
	require.Error(t, err)
	assert.True(t, mcerrors.IsDecryption(err))
	assert.False(t, mcerrors.IsNotFound(err))
}

func TestPortablePasswordFromBootstrapVariable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.json")

	b, err := backends.NewPortableFromConfig(
		testHost(map[string]string{backends.BootstrapPasswordEnv: "from-env"}),
		section(map[string]interface{}{"keyring_path": path}),
	)
	require.NoError(t, err)
	require.NoError(t, mustSecret(t, b, "db").Set(ctx, 1))

	explicit, err := backends.NewPortableFromConfig(testHost(nil), section(map[string]interface{}{
		"fernet_password": "from-env",
		"keyring_path":    path,
	}))
	require.NoError(t, err)
	got, err := mustSecret(t, explicit, "db").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestPortableRequiresPassword(t *testing.T) {
	t.Parallel()

	_, err := backends.NewPortableFromConfig(
		testHost(map[string]string{backends.BootstrapPasswordEnv: ""}),
		section(map[string]interface{}{"keyring_path": filepath.Join(t.TempDir(), "v.json")}),
	)
	require.Error(t, err)
	assert.True(t, mcerrors.IsConfiguration(err))
}

func TestPortableObjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	b, err := backends.NewPortableFromConfig(testHost(nil), section(map[string]interface{}{
		"fernet_password": "pw",
		"keyring_path":    filepath.Join(dir, "vault.json"),
		"basedir":         filepath.Join(dir, "objects"),
	}))
	require.NoError(t, err)

	o := mustObject(t, b, "reports/2024.csv")
	require.NoError(t, backend.PutText(ctx, o, "a,b\n"))
	got, err := backend.GetText(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", got)
	assert.FileExists(t, filepath.Join(dir, "objects", "reports", "2024.csv.object"))

	_, err = b.Object("/abs")
	assert.True(t, mcerrors.IsInvalidKey(err))
}
