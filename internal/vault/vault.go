// Package vault implements a password-protected keystore file.
//
// Each secret is encrypted with Fernet under a key derived from the vault
// password and a per-file salt using PBKDF2-HMAC-SHA256. The file is JSON:
//
//	{"salt": "<hex>", "<service>": {"<name>": "<hex of fernet token>"}}
//
// The salt is created once with the file and never rewritten. A Vault is
// not installed as the process keyring unless Activate is called.
package vault

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/pbkdf2"

	"github.com/systmms/multicloud/internal/keyring"
	"github.com/systmms/multicloud/internal/secure"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

const (
	// Iterations is the PBKDF2 work factor.
	Iterations = 1_200_000

	// SaltSize is the length in bytes of a new vault's salt.
	SaltSize = 16

	keySize = 32
	saltKey = "salt"
)

var (
	// ErrInvalidToken is wrapped by DecryptionError when a ciphertext does
	// not authenticate under the vault key.
	ErrInvalidToken = errors.New("invalid fernet token")

	// ErrSaltChanged is returned by Set when the file on disk carries a
	// different salt than the one the vault key was derived from.
	ErrSaltChanged = errors.New("vault salt changed on disk")
)

// Vault is a Fernet-encrypted keystore bound to one file.
type Vault struct {
	path string
	salt []byte
	key  *secure.SecureBuffer

	mu sync.Mutex
}

// Open loads the keystore at path, or prepares a new one with a fresh salt
// if the file does not exist yet. New files are written on the first Set.
func Open(password, path string) (*Vault, error) {
	if path == "" {
		return nil, mcerrors.ConfigurationError{
			Field:   "keyring_path",
			Message: "vault path must not be empty",
		}
	}

	doc, err := readDocument(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		salt := make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate vault salt: %w", err)
		}
		doc = &document{salt: salt}
	case err != nil:
		return nil, err
	}

	derived := pbkdf2.Key([]byte(password), doc.salt, Iterations, keySize, sha256.New)
	key, err := secure.NewSecureBuffer(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to protect vault key: %w", err)
	}

	return &Vault{
		path: path,
		salt: doc.salt,
		key:  key,
	}, nil
}

// Path returns the keystore file location.
func (v *Vault) Path() string {
	return v.path
}

// Salt returns a copy of the salt the vault key was derived from.
func (v *Vault) Salt() []byte {
	out := make([]byte, len(v.salt))
	copy(out, v.salt)
	return out
}

// Get decrypts the value stored for service/name. It returns
// keyring.ErrNotFound when no entry exists and a DecryptionError when the
// entry does not authenticate under the vault key.
func (v *Vault) Get(service, name string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc, err := readDocument(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", keyring.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	black, ok := doc.services[service][name]
	if !ok {
		return "", keyring.ErrNotFound
	}

	token, err := hex.DecodeString(black)
	if err != nil {
		return "", v.decryptionError(service, name, fmt.Errorf("ciphertext is not hex: %w", err))
	}

	var red []byte
	err = v.withKey(func(k *fernet.Key) error {
		red = fernet.VerifyAndDecrypt(token, -1, []*fernet.Key{k})
		if red == nil {
			return ErrInvalidToken
		}
		return nil
	})
	if errors.Is(err, ErrInvalidToken) {
		return "", v.decryptionError(service, name, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s from %s: %w", service, name, v.path, err)
	}
	return string(red), nil
}

// Set encrypts value and stores it under service/name, rewriting the
// keystore file atomically.
func (v *Vault) Set(service, name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if service == saltKey {
		return mcerrors.InvalidKeyError{Key: service, Message: "service name is reserved by the vault format"}
	}

	doc, err := readDocument(v.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		doc = &document{salt: v.salt}
	case err != nil:
		return err
	}
	if !bytes.Equal(doc.salt, v.salt) {
		return fmt.Errorf("%s: %w", v.path, ErrSaltChanged)
	}

	var token []byte
	err = v.withKey(func(k *fernet.Key) error {
		var encErr error
		token, encErr = fernet.EncryptAndSign([]byte(value), k)
		return encErr
	})
	if err != nil {
		return fmt.Errorf("failed to encrypt secret: %w", err)
	}

	doc.put(service, name, hex.EncodeToString(token))
	return writeDocument(v.path, doc)
}

// Close wipes the key material. The vault is unusable afterwards.
func (v *Vault) Close() {
	v.key.Destroy()
}

// Activate installs v as the process-wide keyring and returns the keyring
// it replaced.
func Activate(v *Vault) keyring.Keyring {
	return keyring.SetDefault(v)
}

func (v *Vault) withKey(fn func(k *fernet.Key) error) error {
	return v.key.With(func(raw []byte) error {
		// fernet keys are the urlsafe base64 form of the derived bytes
		k, err := fernet.DecodeKey(base64.URLEncoding.EncodeToString(raw))
		if err != nil {
			return err
		}
		return fn(k)
	})
}

func (v *Vault) decryptionError(service, name string, err error) error {
	return mcerrors.DecryptionError{Path: v.path, Service: service, Name: name, Err: err}
}

// document is the in-memory form of the keystore file.
type document struct {
	salt     []byte
	services map[string]map[string]string
}

func (d *document) put(service, name, black string) {
	if d.services == nil {
		d.services = make(map[string]map[string]string)
	}
	if d.services[service] == nil {
		d.services[service] = make(map[string]string)
	}
	d.services[service][name] = black
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid vault %s: %w", path, err)
	}

	saltRaw, ok := raw[saltKey]
	if !ok {
		return nil, fmt.Errorf("invalid vault %s: missing salt", path)
	}
	var saltHex string
	if err := json.Unmarshal(saltRaw, &saltHex); err != nil {
		return nil, fmt.Errorf("invalid vault %s: salt is not a string", path)
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("invalid vault %s: salt is not hex", path)
	}

	doc := &document{salt: salt, services: make(map[string]map[string]string)}
	for service, entries := range raw {
		if service == saltKey {
			continue
		}
		var names map[string]string
		if err := json.Unmarshal(entries, &names); err != nil {
			return nil, fmt.Errorf("invalid vault %s: service %q is not a mapping of names to ciphertext", path, service)
		}
		doc.services[service] = names
	}
	return doc, nil
}

func writeDocument(path string, doc *document) error {
	out := make(map[string]interface{}, len(doc.services)+1)
	out[saltKey] = hex.EncodeToString(doc.salt)
	for service, names := range doc.services {
		out[service] = names
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create vault temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set vault permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync vault: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close vault: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}
