package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"creates enclave from bytes", []byte("my-secret-password"), nil},
		{"handles binary data", []byte{0x00, 0xFF, 0x10, 0x20}, nil},
		{"rejects empty data", []byte{}, ErrEmpty},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf, err := NewSecureBuffer(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, buf)
			buf.Destroy()
		})
	}
}

func TestSecureBufferWith(t *testing.T) {
	t.Parallel()

	// memguard wipes the source slice, keep a separate copy for comparison
	expected := "0123456789abcdef0123456789abcdef"
	buf, err := NewSecureBuffer([]byte(expected))
	require.NoError(t, err)
	defer buf.Destroy()

	var seen string
	err = buf.With(func(plaintext []byte) error {
		seen = string(plaintext)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, expected, seen)
}

func TestSecureBufferDestroy(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte("key-material"))
	require.NoError(t, err)

	buf.Destroy()
	buf.Destroy()

	err = buf.With(func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrDestroyed)
}
