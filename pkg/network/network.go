// Package network holds the transport settings shared by network-capable backends.
package network

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// DefaultTimeout applies to HTTP clients built by Network.
const DefaultTimeout = 60 * time.Second

// Network is a passive value object: a CA bundle path and a verify flag.
// An empty CACerts means the system roots.
type Network struct {
	CACerts string
	Verify  bool
}

// New creates a Network, expanding a leading "~" in cacerts.
func New(cacerts string, verify bool) *Network {
	return &Network{
		CACerts: expandHome(cacerts),
		Verify:  verify,
	}
}

// Default returns a Network using the system roots with verification on.
func Default() *Network {
	return &Network{Verify: true}
}

// CABundle returns the PEM contents of the configured bundle, or nil when
// the system roots are in use.
func (n *Network) CABundle() ([]byte, error) {
	if n.CACerts == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(n.CACerts)
	if err != nil {
		return nil, mcerrors.ConfigurationError{
			Field:   "network.cacerts",
			Value:   n.CACerts,
			Message: fmt.Sprintf("failed to read CA bundle: %v", err),
		}
	}
	return pem, nil
}

// TLSConfig builds a client TLS configuration from the settings.
func (n *Network) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !n.Verify, //nolint:gosec // explicit opt-out via network.verify
	}

	pem, err := n.CABundle()
	if err != nil {
		return nil, err
	}
	if pem == nil {
		return cfg, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, mcerrors.ConfigurationError{
			Field:   "network.cacerts",
			Value:   n.CACerts,
			Message: "no certificates found in CA bundle",
		}
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// Transport returns an http.Transport honouring the TLS settings.
func (n *Network) Transport() (*http.Transport, error) {
	tlsConfig, err := n.TLSConfig()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return transport, nil
}

// HTTPClient returns an http.Client honouring the TLS settings.
func (n *Network) HTTPClient() (*http.Client, error) {
	transport, err := n.Transport()
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: DefaultTimeout}, nil
}

func (n *Network) String() string {
	if n.CACerts == "" {
		return "Network<system>"
	}
	return fmt.Sprintf("Network<%s>", n.CACerts)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
