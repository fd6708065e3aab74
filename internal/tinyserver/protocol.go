// Package tinyserver exposes a backend over HTTP so that containers can
// reach objects and secrets through a sidecar or host process.
//
//	GET  /objects/{key}   object contents
//	PUT  /objects/{key}   replace object contents
//	HEAD /objects/{key}   200 if the object exists, 404 otherwise
//	GET  /secrets/{name}  secret value as JSON
//	PUT  /secrets/{name}  replace the secret with the JSON request body
//
// Failures carry a JSON ErrorBody whose Kind lets clients rebuild the
// original error type.
package tinyserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

const (
	// DefaultAddr is where Serve listens when no address is given.
	DefaultAddr = "localhost:8700"

	// URLEnv overrides the tinyserver backend's default URL.
	URLEnv = "MULTICLOUD_TINYSERVER_URL"

	// DefaultURL is used when neither the section nor URLEnv set one.
	DefaultURL = "http://" + DefaultAddr

	ObjectsPrefix = "/objects/"
	SecretsPrefix = "/secrets/"

	// MaxBodySize bounds request bodies accepted by the server.
	MaxBodySize = 256 << 20
)

// Error kinds carried in ErrorBody.
const (
	KindNotFound      = "not_found"
	KindDecryption    = "decryption"
	KindInvalidKey    = "invalid_key"
	KindConfiguration = "configuration"
	KindBadRequest    = "bad_request"
	KindInternal      = "internal"
)

// ErrorBody is the JSON payload of every non-2xx response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"error"`
}

// Classify maps err to a kind and HTTP status.
func Classify(err error) (string, int) {
	switch {
	case mcerrors.IsNotFound(err):
		return KindNotFound, http.StatusNotFound
	case mcerrors.IsDecryption(err):
		return KindDecryption, http.StatusForbidden
	case mcerrors.IsInvalidKey(err):
		return KindInvalidKey, http.StatusBadRequest
	case mcerrors.IsConfiguration(err):
		return KindConfiguration, http.StatusInternalServerError
	default:
		return KindInternal, http.StatusBadGateway
	}
}

// DecodeError rebuilds a typed error from a failed response. The body is
// consumed but not closed.
func DecodeError(resp *http.Response, backendName, kind, key string) error {
	var body ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = resp.Status
	}

	switch body.Kind {
	case KindNotFound:
		return mcerrors.NotFoundError{Backend: backendName, Kind: kind, Key: key}
	case KindDecryption:
		return mcerrors.DecryptionError{Name: key, Err: errors.New(body.Message)}
	case KindInvalidKey:
		return mcerrors.InvalidKeyError{Key: key, Message: body.Message}
	case KindConfiguration:
		return mcerrors.ConfigurationError{Message: body.Message}
	}
	if resp.StatusCode == http.StatusNotFound && body.Kind == "" {
		return mcerrors.NotFoundError{Backend: backendName, Kind: kind, Key: key}
	}
	return mcerrors.TransportError{Backend: backendName, Op: resp.Request.Method + " " + kind, Err: errors.New(body.Message)}
}
