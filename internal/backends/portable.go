package backends

import (
	"fmt"

	"github.com/systmms/multicloud/internal/keyring"
	"github.com/systmms/multicloud/internal/vault"
	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// PortableBackend keeps secrets in a Fernet vault file that can travel
// with the data, and objects under basedir like LocalBackend.
type PortableBackend struct {
	service string
	objects objectStore
	vault   *vault.Vault
}

// NewPortableBackend creates a portable backend over an open vault.
func NewPortableBackend(service, basedir string, v *vault.Vault) *PortableBackend {
	return &PortableBackend{
		service: service,
		objects: objectStore{backendName: TypePortable, basedir: basedir},
		vault:   v,
	}
}

// NewPortableFromConfig is the Factory for type "portable".
func NewPortableFromConfig(h backend.Host, cfg *config.Config) (backend.Backend, error) {
	basedir, err := cfg.GetString(h.Environment, "basedir", "")
	if err != nil {
		return nil, err
	}
	password, err := cfg.GetString(h.Environment, "fernet_password", "")
	if err != nil {
		return nil, err
	}
	if password == "" {
		password = h.Environment.Getenv(BootstrapPasswordEnv, "")
	}
	if password == "" {
		return nil, mcerrors.ConfigurationError{
			Field:      cfg.Field("fernet_password"),
			Message:    "portable backend requires a vault password",
			Suggestion: fmt.Sprintf("Set 'fernet_password' or %s", BootstrapPasswordEnv),
		}
	}

	v, err := openVault(h, cfg, password)
	if err != nil {
		return nil, err
	}
	return NewPortableBackend(h.Service, basedir, v), nil
}

// Name implements backend.Backend.
func (b *PortableBackend) Name() string {
	return TypePortable
}

// Vault returns the backing vault.
func (b *PortableBackend) Vault() *vault.Vault {
	return b.vault
}

// Secret implements backend.Backend.
func (b *PortableBackend) Secret(name string) (backend.Secret, error) {
	if err := backend.ValidateSecretName(name); err != nil {
		return nil, err
	}
	v := b.vault
	return &KeyringSecret{
		backendName: TypePortable,
		service:     b.service,
		name:        name,
		ring:        func() keyring.Keyring { return v },
	}, nil
}

// Object implements backend.Backend.
func (b *PortableBackend) Object(key string) (backend.Object, error) {
	return b.objects.object(key)
}
