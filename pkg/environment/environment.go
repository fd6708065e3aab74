// Package environment resolves named variables for a service and expands
// ${env.NAME} tokens in configuration strings.
package environment

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// EnvNamespace is the only interpolation namespace currently supported.
const EnvNamespace = "env"

const (
	// maxDepth bounds how many variable values may expand inside each other.
	maxDepth = 32
	// maxLength bounds the size of an interpolated string.
	maxLength = 1 << 20
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Environment is an immutable snapshot of variables consulted before the
// process environment.
type Environment struct {
	vars map[string]string
}

// New creates an Environment over a copy of vars. Later changes to vars do
// not affect the Environment.
func New(vars map[string]string) *Environment {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Environment{vars: copied}
}

// FromDotenv creates an Environment from vars layered over the entries of a
// dotenv file. Explicit vars win over file entries.
func FromDotenv(path string, vars map[string]string) (*Environment, error) {
	fileVars, err := godotenv.Read(path)
	if err != nil {
		return nil, mcerrors.ConfigurationError{
			Field:   "env_file",
			Value:   path,
			Message: fmt.Sprintf("failed to read dotenv file: %v", err),
		}
	}
	for k, v := range vars {
		fileVars[k] = v
	}
	return &Environment{vars: fileVars}, nil
}

// Getenv returns the value of name from the captured mapping, then the
// process environment, then def.
func (e *Environment) Getenv(name, def string) string {
	if v, ok := e.Lookup(name); ok {
		return v
	}
	return def
}

// Lookup reports the value of name and whether it was found in either the
// captured mapping or the process environment.
func (e *Environment) Lookup(name string) (string, bool) {
	if e != nil {
		if v, ok := e.vars[name]; ok {
			return v, true
		}
	}
	return os.LookupEnv(name)
}

// Interpolate replaces every ${env.NAME} token in template with
// Getenv(NAME, ""). Substituted values are expanded in turn, so a value may
// itself contain tokens; a variable that expands back into itself is a
// ConfigurationError. Tokens naming any other namespace, or malformed
// tokens, fail with a ConfigurationError.
func (e *Environment) Interpolate(template string) (string, error) {
	return e.expand(template, template, nil)
}

// expand substitutes the tokens of s left to right. active holds the names
// whose values are currently being expanded.
func (e *Environment) expand(template, s string, active []string) (string, error) {
	if len(active) > maxDepth {
		return "", mcerrors.ConfigurationError{
			Value:   template,
			Message: "interpolation nested too deeply",
		}
	}

	var b strings.Builder
	rest := s
	for {
		loc := tokenPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			return b.String(), nil
		}

		token := rest[loc[2]:loc[3]]
		name, err := e.resolve(token)
		if err != nil {
			return "", err
		}
		for _, a := range active {
			if a == name {
				return "", mcerrors.ConfigurationError{
					Value:   template,
					Message: fmt.Sprintf("variable '%s' references itself during interpolation", name),
				}
			}
		}

		value, err := e.expand(template, e.Getenv(name, ""), append(active[:len(active):len(active)], name))
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:loc[0]])
		b.WriteString(value)
		if b.Len() > maxLength {
			return "", mcerrors.ConfigurationError{
				Value:   template,
				Message: fmt.Sprintf("interpolated value exceeds %d bytes", maxLength),
			}
		}
		rest = rest[loc[1]:]
	}
}

// resolve validates token and returns the variable name it references.
func (e *Environment) resolve(token string) (string, error) {
	namespace, name, ok := strings.Cut(token, ".")
	if !ok {
		return "", mcerrors.ConfigurationError{
			Value:      "${" + token + "}",
			Message:    "malformed interpolation token",
			Suggestion: "use ${env.NAME}",
		}
	}
	if namespace != EnvNamespace {
		return "", mcerrors.ConfigurationError{
			Value:      "${" + token + "}",
			Message:    fmt.Sprintf("unsupported interpolation namespace '%s'", namespace),
			Suggestion: "only ${env.NAME} tokens are supported",
		}
	}
	if !namePattern.MatchString(name) {
		return "", mcerrors.ConfigurationError{
			Value:   "${" + token + "}",
			Message: fmt.Sprintf("invalid variable name '%s'", name),
		}
	}
	return name, nil
}

func (e *Environment) String() string {
	return fmt.Sprintf("Environment<%s>", e.Getenv("ENV", "dev"))
}
