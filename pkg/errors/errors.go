// Package errors defines the error kinds returned by multicloud backends.
//
// Callers discriminate failure modes with the Is* helpers (or errors.As)
// instead of matching message text:
//
//	v, err := secret.Get(ctx)
//	switch {
//	case mcerrors.IsDecryption(err):
//	    // prompt for a corrected vault password
//	case mcerrors.IsNotFound(err):
//	    // treat the secret as unset
//	}
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError represents a missing or invalid configuration setting.
type ConfigurationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  Try: " + e.Suggestion
	}

	return msg
}

// NotFoundError indicates that a secret name or object key is absent from the backend.
type NotFoundError struct {
	// Backend is the name of the backend that was asked.
	Backend string

	// Kind is "secret" or "object".
	Kind string

	// Key is the secret name or object key.
	Key string
}

func (e NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "item"
	}
	return fmt.Sprintf("%s not found: %s in %s", kind, e.Key, e.Backend)
}

// DecryptionError indicates that vault ciphertext exists but cannot be opened with
// the supplied password. It is deliberately distinct from NotFoundError.
type DecryptionError struct {
	Path    string
	Service string
	Name    string
	Err     error
}

func (e DecryptionError) Error() string {
	return fmt.Sprintf("failed to decrypt %s/%s in %s, check that the vault password is correct", e.Service, e.Name, e.Path)
}

func (e DecryptionError) Unwrap() error {
	return e.Err
}

// InvalidKeyError is returned for malformed object keys or secret names,
// before any I/O takes place.
type InvalidKeyError struct {
	Key     string
	Message string
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key '%s': %s", e.Key, e.Message)
}

// TransportError wraps a failure of the underlying SDK, SSH or HTTP layer.
type TransportError struct {
	Backend string
	Op      string
	Err     error
}

func (e TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Backend, e.Op)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target ConfigurationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsDecryption reports whether err is or wraps a DecryptionError.
func IsDecryption(err error) bool {
	var target DecryptionError
	return errors.As(err, &target)
}

// IsInvalidKey reports whether err is or wraps an InvalidKeyError.
func IsInvalidKey(err error) bool {
	var target InvalidKeyError
	return errors.As(err, &target)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var target TransportError
	return errors.As(err, &target)
}
