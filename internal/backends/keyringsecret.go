package backends

import (
	"context"
	"errors"

	"github.com/systmms/multicloud/internal/keyring"
	"github.com/systmms/multicloud/pkg/backend"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// KeyringSecret stores a JSON value in a keyring under (service, name).
type KeyringSecret struct {
	backendName string
	service     string
	name        string
	ring        func() keyring.Keyring
}

// Name implements backend.Secret.
func (s *KeyringSecret) Name() string {
	return s.name
}

// Get implements backend.Secret.
func (s *KeyringSecret) Get(ctx context.Context) (interface{}, error) {
	text, err := s.ring().Get(s.service, s.name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, mcerrors.NotFoundError{Backend: s.backendName, Kind: "secret", Key: s.service + "/" + s.name}
	}
	if err != nil {
		if mcerrors.IsDecryption(err) {
			return nil, err
		}
		return nil, mcerrors.TransportError{Backend: s.backendName, Op: "keyring get", Err: err}
	}
	return backend.DecodeValue(text)
}

// Set implements backend.Secret.
func (s *KeyringSecret) Set(ctx context.Context, value interface{}) error {
	text, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}
	if err := s.ring().Set(s.service, s.name, text); err != nil {
		if mcerrors.IsInvalidKey(err) {
			return err
		}
		return mcerrors.TransportError{Backend: s.backendName, Op: "keyring set", Err: err}
	}
	return nil
}
