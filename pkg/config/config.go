// Package config wraps the nested mapping parsed from a multicloud YAML
// document and yields sub-sections and interpolated scalar values.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// EnvConfigPath overrides the default configuration file location.
const EnvConfigPath = "MULTICLOUD_CONFIG"

// Interpolator expands tokens in configuration strings.
// *environment.Environment satisfies it.
type Interpolator interface {
	Interpolate(template string) (string, error)
}

// Config is an immutable view over one mapping of the document. The parent
// link is kept for diagnostics only; lookups never consult it.
type Config struct {
	name   string
	values map[string]interface{}
	parent *Config
}

// New wraps values as a root section without validating it.
func New(values map[string]interface{}) *Config {
	if values == nil {
		values = map[string]interface{}{}
	}
	return &Config{values: values}
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, mcerrors.ConfigurationError{
			Message:    fmt.Sprintf("invalid YAML syntax: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if raw == nil {
		return New(nil), nil
	}

	values, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return nil, mcerrors.ConfigurationError{
			Message: "configuration document must be a mapping of service names",
		}
	}

	cfg := New(values)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the YAML document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mcerrors.ConfigurationError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: fmt.Sprintf("Create the file or set %s", EnvConfigPath),
			}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return Parse(data)
}

// DefaultPath returns $MULTICLOUD_CONFIG, or ~/.jaws.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jaws"
	}
	return filepath.Join(home, ".jaws")
}

// Name returns the dotted path of this section from the document root.
func (c *Config) Name() string {
	if c == nil {
		return ""
	}
	if c.parent == nil || c.parent.Name() == "" {
		return c.name
	}
	return c.parent.Name() + "." + c.name
}

// Parent returns the enclosing section, or nil at the root.
func (c *Config) Parent() *Config {
	if c == nil {
		return nil
	}
	return c.parent
}

// Map returns the underlying mapping.
func (c *Config) Map() map[string]interface{} {
	if c == nil {
		return nil
	}
	return c.values
}

// Has reports whether key is present in this section.
func (c *Config) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.values[key]
	return ok
}

// Keys returns the section's keys in sorted order.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSection returns the named sub-section, or nil when it is absent or
// null. A present value that is not a mapping is a ConfigurationError.
func (c *Config) GetSection(name string) (*Config, error) {
	if c == nil {
		return nil, nil
	}
	raw, ok := c.values[name]
	if !ok || raw == nil {
		return nil, nil
	}
	values, ok := raw.(map[string]interface{})
	if !ok {
		return nil, mcerrors.ConfigurationError{
			Field:   c.qualify(name),
			Message: fmt.Sprintf("config section is not a mapping (got %T)", raw),
		}
	}
	return &Config{name: name, values: values, parent: c}, nil
}

// GetValue returns the scalar at key. Strings are interpolated through in;
// numbers and booleans pass through unchanged; any other type is a
// ConfigurationError. Absent or null keys yield def.
func (c *Config) GetValue(in Interpolator, key string, def interface{}) (interface{}, error) {
	if c == nil {
		return def, nil
	}
	raw, ok := c.values[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case string:
		if in == nil {
			return v, nil
		}
		s, err := in.Interpolate(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.qualify(key), err)
		}
		return s, nil
	case int, int64, float64, bool:
		return v, nil
	default:
		return nil, mcerrors.ConfigurationError{
			Field:   c.qualify(key),
			Message: fmt.Sprintf("unsupported config value type %T", raw),
		}
	}
}

// GetString returns the value at key as a string. Numbers and booleans are
// formatted.
func (c *Config) GetString(in Interpolator, key, def string) (string, error) {
	v, err := c.GetValue(in, key, def)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	default:
		return fmt.Sprint(s), nil
	}
}

// GetInt returns the value at key as an int. Strings are interpolated and
// parsed.
func (c *Config) GetInt(in Interpolator, key string, def int) (int, error) {
	v, err := c.GetValue(in, key, def)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, nil
		}
	}
	return 0, mcerrors.ConfigurationError{
		Field:   c.qualify(key),
		Value:   v,
		Message: "expected an integer",
	}
}

// GetBool returns the value at key as a bool. Strings are interpolated and
// parsed.
func (c *Config) GetBool(in Interpolator, key string, def bool) (bool, error) {
	v, err := c.GetValue(in, key, def)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed, nil
		}
	}
	return false, mcerrors.ConfigurationError{
		Field:   c.qualify(key),
		Value:   v,
		Message: "expected a boolean",
	}
}

// StringMap returns the section's scalar entries formatted as strings,
// without interpolation. Used for the environment section.
func (c *Config) StringMap() (map[string]string, error) {
	out := make(map[string]string, len(c.Map()))
	for _, key := range c.Keys() {
		s, err := c.GetString(nil, key, "")
		if err != nil {
			return nil, err
		}
		out[key] = s
	}
	return out, nil
}

// Field returns the dotted path of key within the document, for error
// messages.
func (c *Config) Field(key string) string {
	return c.qualify(key)
}

func (c *Config) qualify(key string) string {
	if name := c.Name(); name != "" {
		return name + "." + key
	}
	return key
}

func (c *Config) String() string {
	return fmt.Sprintf("Config<%s>", c.Name())
}

// normalize converts YAML mappings with non-string keys into
// map[string]interface{} so that every section has one shape.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = normalize(inner)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = normalize(inner)
		}
		return out
	case []interface{}:
		for i, inner := range t {
			t[i] = normalize(inner)
		}
		return t
	default:
		return v
	}
}
