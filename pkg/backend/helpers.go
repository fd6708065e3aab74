package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// ValidateKey rejects object keys that could escape a backend's storage
// root.
func ValidateKey(key string) error {
	if key == "" {
		return mcerrors.InvalidKeyError{Key: key, Message: "object key must not be empty"}
	}
	if strings.HasPrefix(key, "/") {
		return mcerrors.InvalidKeyError{Key: key, Message: "object key must not start with '/'"}
	}
	return nil
}

// ValidateSecretName rejects empty names.
func ValidateSecretName(name string) error {
	if strings.TrimSpace(name) == "" {
		return mcerrors.InvalidKeyError{Key: name, Message: "secret name must not be empty"}
	}
	return nil
}

// EncodeValue serializes a secret value to JSON text.
func EncodeValue(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("secret value is not JSON serializable: %w", err)
	}
	return string(data), nil
}

// DecodeValue parses JSON text produced by EncodeValue.
func DecodeValue(text string) (interface{}, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("stored secret is not valid JSON: %w", err)
	}
	return value, nil
}

// DecodeInto fetches a secret and unmarshals it into out.
func DecodeInto(ctx context.Context, s Secret, out interface{}) error {
	value, err := s.Get(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// GetText returns an object's contents as a string.
func GetText(ctx context.Context, o Object) (string, error) {
	data, err := o.GetBytes(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PutText stores a string as an object's contents.
func PutText(ctx context.Context, o Object, value string) error {
	return o.PutBytes(ctx, []byte(value))
}

// Aborter is implemented by PutFile streams that can discard their
// contents instead of committing them.
type Aborter interface {
	Abort() error
}

// Abort discards an unfinished PutFile stream. Streams that cannot abort
// are left unclosed so nothing is committed.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return nil
}
