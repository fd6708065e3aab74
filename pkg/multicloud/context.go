package multicloud

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/systmms/multicloud/internal/detect"
	"github.com/systmms/multicloud/internal/logging"
	"github.com/systmms/multicloud/internal/metrics"
	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	"github.com/systmms/multicloud/pkg/environment"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/network"
)

// DefaultService is used when New is given an empty service name.
const DefaultService = "default"

// Context is the composition root for one service. Its Environment,
// Network and Backend are created once and never mutated, so a Context
// may be shared between goroutines.
type Context struct {
	service     string
	environment *environment.Environment
	network     *network.Network
	backend     backend.Backend
	logger      *logging.Logger
	metrics     bool
}

type options struct {
	registry *backend.Registry
	detector detect.Detector
	logger   *logging.Logger
	metrics  bool
}

// Option customizes New.
type Option func(*options)

// WithRegistry resolves backends from r instead of DefaultRegistry.
func WithRegistry(r *backend.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithDetector replaces the runtime probe used for defaulting.
func WithDetector(d detect.Detector) Option {
	return func(o *options) {
		o.detector = d
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics toggles Prometheus instrumentation of the accessors returned
// by Secret and Object. It is on by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

// LoadConfig reads a configuration document. An empty path selects
// $MULTICLOUD_CONFIG, then ~/.jaws.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// Load reads the default configuration file and creates a Context for
// service.
func Load(service string, opts ...Option) (*Context, error) {
	doc, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	return New(service, doc, opts...)
}

// New creates the Context for service from doc. A nil doc selects the
// default backend for the detected runtime. A document without a section
// for service is a ConfigurationError.
func New(service string, doc *config.Config, opts ...Option) (*Context, error) {
	o := &options{metrics: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.detector == nil {
		o.detector = detect.Default()
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	if service == "" {
		service = DefaultService
	}

	var section *config.Config
	if doc != nil {
		var err error
		section, err = doc.GetSection(service)
		if err != nil {
			return nil, err
		}
		if section == nil {
			return nil, mcerrors.ConfigurationError{
				Field:      service,
				Message:    "service not found in configuration",
				Suggestion: fmt.Sprintf("Available services: %s", strings.Join(doc.Keys(), ", ")),
			}
		}
	}

	env, err := createEnvironment(section)
	if err != nil {
		return nil, err
	}
	net, err := createNetwork(section, env)
	if err != nil {
		return nil, err
	}

	backendCfg, err := section.GetSection("backend")
	if err != nil {
		return nil, err
	}
	if backendCfg == nil {
		rt := o.detector.Detect()
		backendCfg = config.New(DefaultBackendSection(rt, os.TempDir()))
		o.logger.Debug("service %s: no backend configured, using default for %s runtime", service, rt)
	}

	b, err := o.registry.Create(backend.Host{Service: service, Environment: env, Network: net}, backendCfg)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("service %s: %s backend", service, b.Name())

	return &Context{
		service:     service,
		environment: env,
		network:     net,
		backend:     b,
		logger:      o.logger,
		metrics:     o.metrics,
	}, nil
}

func createEnvironment(section *config.Config) (*environment.Environment, error) {
	envCfg, err := section.GetSection("environment")
	if err != nil {
		return nil, err
	}
	vars, err := envCfg.StringMap()
	if err != nil {
		return nil, err
	}

	envFile, err := section.GetString(nil, "env_file", "")
	if err != nil {
		return nil, err
	}
	if envFile == "" {
		return environment.New(vars), nil
	}
	return environment.FromDotenv(expandHome(envFile), vars)
}

func createNetwork(section *config.Config, env *environment.Environment) (*network.Network, error) {
	netCfg, err := section.GetSection("network")
	if err != nil {
		return nil, err
	}
	if netCfg == nil {
		return network.Default(), nil
	}
	cacerts, err := netCfg.GetString(env, "cacerts", "")
	if err != nil {
		return nil, err
	}
	verify, err := netCfg.GetBool(env, "verify", true)
	if err != nil {
		return nil, err
	}
	return network.New(cacerts, verify), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Service returns the service name.
func (c *Context) Service() string {
	return c.service
}

// Environment returns the service environment.
func (c *Context) Environment() *environment.Environment {
	return c.environment
}

// Network returns the service network settings.
func (c *Context) Network() *network.Network {
	return c.network
}

// Backend returns the resolved backend.
func (c *Context) Backend() backend.Backend {
	return c.backend
}

// Interpolate expands ${env.NAME} tokens using the service environment.
func (c *Context) Interpolate(template string) (string, error) {
	return c.environment.Interpolate(template)
}

// Secret returns an accessor for the named secret.
func (c *Context) Secret(name string) (backend.Secret, error) {
	s, err := c.backend.Secret(name)
	if err != nil {
		return nil, err
	}
	if c.metrics {
		return metrics.InstrumentSecret(c.backend.Name(), s), nil
	}
	return s, nil
}

// Object returns an accessor for the object at key.
func (c *Context) Object(key string) (backend.Object, error) {
	o, err := c.backend.Object(key)
	if err != nil {
		return nil, err
	}
	if c.metrics {
		return metrics.InstrumentObject(c.backend.Name(), o), nil
	}
	return o, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("Context<%s>(%s,%s,%s)", c.service, c.backend.Name(), c.network, c.environment)
}
