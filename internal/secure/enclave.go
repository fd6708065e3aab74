package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer keeps key material encrypted in memory between uses.
// It wraps memguard.Enclave: the plaintext only exists inside the
// LockedBuffer handed to With, and is wiped when With returns.
type SecureBuffer struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewSecureBuffer moves data into a protected enclave. memguard wipes the
// source slice, so callers must not reuse it.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return &SecureBuffer{
		enclave: memguard.NewEnclave(data),
	}, nil
}

// With decrypts the buffer, passes the plaintext to fn and destroys the
// plaintext afterwards. fn must not retain the slice.
func (s *SecureBuffer) With(fn func(plaintext []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return ErrDestroyed
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is idempotent; With fails afterwards.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
