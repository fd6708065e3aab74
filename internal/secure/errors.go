package secure

import "errors"

var (
	// ErrEmpty is returned when a buffer is created from no data.
	ErrEmpty = errors.New("secure buffer requires non-empty data")

	// ErrDestroyed is returned by With after Destroy.
	ErrDestroyed = errors.New("secure buffer has been destroyed")
)
