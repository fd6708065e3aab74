package backends_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	"github.com/systmms/multicloud/pkg/environment"
	"github.com/systmms/multicloud/pkg/network"
)

func testHost(vars map[string]string) backend.Host {
	return backend.Host{
		Service:     "svc",
		Environment: environment.New(vars),
		Network:     network.Default(),
	}
}

func section(values map[string]interface{}) *config.Config {
	return config.New(values)
}

func mustObject(t *testing.T, b backend.Backend, key string) backend.Object {
	t.Helper()
	o, err := b.Object(key)
	require.NoError(t, err)
	return o
}

func mustSecret(t *testing.T, b backend.Backend, name string) backend.Secret {
	t.Helper()
	s, err := b.Secret(name)
	require.NoError(t, err)
	return s
}
