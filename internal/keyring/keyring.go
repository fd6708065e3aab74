// Package keyring abstracts the password store used by secret backends
// that keep values on the local machine.
//
// The process has one default Keyring. It starts as the operating system
// keyring; a Fernet vault can replace it with vault.Activate.
package keyring

import (
	"errors"
	"sync"

	gokeyring "github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no password is stored for service/user.
var ErrNotFound = errors.New("keyring: secret not found")

// Keyring stores passwords keyed by service and user.
type Keyring interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
}

// System is the operating system keyring (Keychain, Secret Service or
// Windows Credential Manager).
type System struct{}

// Get implements Keyring.
func (System) Get(service, user string) (string, error) {
	secret, err := gokeyring.Get(service, user)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

// Set implements Keyring.
func (System) Set(service, user, password string) error {
	return gokeyring.Set(service, user, password)
}

var (
	defaultMu sync.RWMutex
	current   Keyring = System{}
)

// Default returns the process-wide keyring.
func Default() Keyring {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return current
}

// SetDefault replaces the process-wide keyring and returns the previous one.
func SetDefault(k Keyring) Keyring {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := current
	current = k
	return prev
}

// ResetDefault restores the operating system keyring as the default.
func ResetDefault() {
	SetDefault(System{})
}

// Memory is an in-process Keyring. The zero value is ready to use.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
}

func memoryKey(service, user string) string {
	return service + "\x00" + user
}

// Get implements Keyring.
func (m *Memory) Get(service, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.secrets[memoryKey(service, user)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Keyring.
func (m *Memory) Set(service, user, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = make(map[string]string)
	}
	m.secrets[memoryKey(service, user)] = password
	return nil
}
