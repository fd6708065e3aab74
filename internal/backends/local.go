package backends

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/systmms/multicloud/internal/keyring"
	"github.com/systmms/multicloud/internal/vault"
	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

const (
	// BootstrapPasswordEnv unlocks Fernet vaults when no password is
	// configured explicitly.
	BootstrapPasswordEnv = "MULTICLOUD_BOOTSTRAP_PASSWORD"

	keyringSystem = "system"
	keyringFernet = "fernet"
)

// DefaultVaultPath is used when a vault-backed section has no
// keyring_path.
func DefaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fernet-keyring.json"
	}
	return filepath.Join(home, ".multicloud", "fernet-keyring.json")
}

// LocalBackend keeps objects on the local filesystem and secrets in the
// process keyring (the OS keyring unless a vault was activated) or in its
// own Fernet vault.
type LocalBackend struct {
	service string
	objects objectStore
	vault   *vault.Vault
}

// NewLocalBackend creates a local backend. A nil vault selects the process
// keyring for secrets.
func NewLocalBackend(service, basedir string, v *vault.Vault) *LocalBackend {
	return &LocalBackend{
		service: service,
		objects: objectStore{backendName: TypeLocal, basedir: basedir},
		vault:   v,
	}
}

// NewLocalFromConfig is the Factory for type "local".
func NewLocalFromConfig(h backend.Host, cfg *config.Config) (backend.Backend, error) {
	basedir, err := cfg.GetString(h.Environment, "basedir", "")
	if err != nil {
		return nil, err
	}
	impl, err := cfg.GetString(h.Environment, "keyring", keyringSystem)
	if err != nil {
		return nil, err
	}

	switch impl {
	case keyringSystem:
		return NewLocalBackend(h.Service, basedir, nil), nil
	case keyringFernet:
		password, ok := h.Environment.Lookup(BootstrapPasswordEnv)
		if !ok || password == "" {
			return nil, mcerrors.ConfigurationError{
				Field:      cfg.Field("keyring"),
				Value:      impl,
				Message:    "fernet keyring requires a bootstrap password",
				Suggestion: fmt.Sprintf("Set %s in the environment section or the process environment", BootstrapPasswordEnv),
			}
		}
		v, err := openVault(h, cfg, password)
		if err != nil {
			return nil, err
		}
		return NewLocalBackend(h.Service, basedir, v), nil
	default:
		return nil, mcerrors.ConfigurationError{
			Field:      cfg.Field("keyring"),
			Value:      impl,
			Message:    "unknown keyring implementation",
			Suggestion: "Use 'system' or 'fernet'",
		}
	}
}

func openVault(h backend.Host, cfg *config.Config, password string) (*vault.Vault, error) {
	path, err := cfg.GetString(h.Environment, "keyring_path", DefaultVaultPath())
	if err != nil {
		return nil, err
	}
	return vault.Open(password, expandHome(path))
}

// Name implements backend.Backend.
func (b *LocalBackend) Name() string {
	return TypeLocal
}

// Secret implements backend.Backend.
func (b *LocalBackend) Secret(name string) (backend.Secret, error) {
	if err := backend.ValidateSecretName(name); err != nil {
		return nil, err
	}
	ring := keyring.Default
	if b.vault != nil {
		v := b.vault
		ring = func() keyring.Keyring { return v }
	}
	return &KeyringSecret{backendName: TypeLocal, service: b.service, name: name, ring: ring}, nil
}

// Object implements backend.Backend.
func (b *LocalBackend) Object(key string) (backend.Object, error) {
	return b.objects.object(key)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
