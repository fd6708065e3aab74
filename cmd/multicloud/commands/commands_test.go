package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/multicloud/internal/backends"
	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/internal/testutil"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

type fixture struct {
	opts      *Options
	log       *bytes.Buffer
	basedir   string
	vaultPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		log:       &bytes.Buffer{},
		basedir:   filepath.Join(dir, "objects"),
		vaultPath: filepath.Join(dir, "vault.json"),
	}
	configPath := filepath.Join(dir, "jaws.yaml")
	doc := fmt.Sprintf(`
app:
  backend:
    type: portable
    basedir: %s
    keyring_path: %s
    fernet_password: correct-horse
`, f.basedir, f.vaultPath)
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0600))

	f.opts = &Options{
		ConfigPath: configPath,
		Service:    "app",
		Logger:     logging.NewWithWriter(f.log, true, true),
	}
	return f
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "multicloud", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(cmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSecretCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := execute(t, NewSecretCommand(f.opts), "", "secret", "set", "db", `{"username": "app", "port": 5432}`)
	require.NoError(t, err)
	assert.Contains(t, f.log.String(), "stored secret db for service app")
	assert.Contains(t, f.log.String(), "[DEBUG] secret db = [REDACTED]")
	assert.NotContains(t, f.log.String(), "username")

	out, err := execute(t, NewSecretCommand(f.opts), "", "secret", "get", "db")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username": "app", "port": 5432}`, out)

	_, err = execute(t, NewSecretCommand(f.opts), "", "secret", "set", "token", "--raw", "abc123")
	require.NoError(t, err)
	out, err = execute(t, NewSecretCommand(f.opts), "", "secret", "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "\"abc123\"\n", out)
}

func TestSecretCommandErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := execute(t, NewSecretCommand(f.opts), "", "secret", "set", "db", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--raw")

	_, err = execute(t, NewSecretCommand(f.opts), "", "secret", "get", "missing")
	require.Error(t, err)
	assert.True(t, mcerrors.IsNotFound(err))

	_, err = execute(t, NewSecretCommand(f.opts), "", "secret", "get")
	assert.Error(t, err)
}

func TestObjectCommands(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out, err := execute(t, NewObjectCommand(f.opts), "", "object", "exists", "reports/q1.csv")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	_, err = execute(t, NewObjectCommand(f.opts), "a,b\n1,2\n", "object", "put", "reports/q1.csv")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.basedir, "reports", "q1.csv.object"))
	assert.Contains(t, f.log.String(), "stored 8 bytes at reports/q1.csv")

	out, err = execute(t, NewObjectCommand(f.opts), "", "object", "exists", "reports/q1.csv")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, NewObjectCommand(f.opts), "", "object", "get", "reports/q1.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", out)

	target := filepath.Join(t.TempDir(), "copy.csv")
	_, err = execute(t, NewObjectCommand(f.opts), "", "object", "get", "reports/q1.csv", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestObjectPutFromFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	src := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(src, []byte{0, 1, 2}, 0600))

	_, err := execute(t, NewObjectCommand(f.opts), "", "object", "put", "blob", "--file", src)
	require.NoError(t, err)

	out, err := execute(t, NewObjectCommand(f.opts), "", "object", "get", "blob")
	require.NoError(t, err)
	assert.Equal(t, string([]byte{0, 1, 2}), out)

	_, err = execute(t, NewObjectCommand(f.opts), "", "object", "get", "/abs")
	require.Error(t, err)
	assert.True(t, mcerrors.IsInvalidKey(err))
}

func TestVaultCheck(t *testing.T) {
	f := newFixture(t)
	_, err := execute(t, NewSecretCommand(f.opts), "", "secret", "set", "db", `{"u": "v"}`)
	require.NoError(t, err)

	testutil.SetupTestEnv(t, map[string]string{backends.BootstrapPasswordEnv: "correct-horse"})
	_, err = execute(t, NewVaultCommand(f.opts), "", "vault", "check", "db", "--path", f.vaultPath)
	require.NoError(t, err)
	assert.Contains(t, f.log.String(), "1 secrets decrypt")
	assert.Contains(t, f.log.String(), "with password [REDACTED]")
	assert.NotContains(t, f.log.String(), "correct-horse")

	testutil.SetupTestEnv(t, map[string]string{backends.BootstrapPasswordEnv: "wrong"})
	_, err = execute(t, NewVaultCommand(f.opts), "", "vault", "check", "db", "--path", f.vaultPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 secrets failed")
	assert.Contains(t, f.log.String(), "app/db: ")

	testutil.UnsetTestEnv(t, backends.BootstrapPasswordEnv)
	_, err = execute(t, NewVaultCommand(f.opts), "", "vault", "check", "db", "--path", f.vaultPath)
	require.Error(t, err)
	assert.True(t, mcerrors.IsConfiguration(err))
}

func TestMissingDefaultConfigUsesRuntimeDefaults(t *testing.T) {
	testutil.SetupTestEnv(t, map[string]string{"MULTICLOUD_CONFIG": filepath.Join(t.TempDir(), "absent.yaml")})

	mc, err := (&Options{Service: "app"}).Context()
	require.NoError(t, err)
	assert.Equal(t, "app", mc.Service())
	assert.NotNil(t, mc.Backend())

	_, err = (&Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}).Context()
	require.Error(t, err)
	assert.True(t, mcerrors.IsConfiguration(err))
}

func TestServeStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	root := &cobra.Command{Use: "multicloud", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(NewServeCommand(f.opts))
	root.SetArgs([]string{"serve", "--addr", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
