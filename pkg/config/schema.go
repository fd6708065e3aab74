package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

// documentSchema describes the shape of a multicloud configuration document:
// service name -> {environment, env_file, network, backend}. Backend-specific
// fields are left open so that plugin backends can add their own.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": ["object", "null"],
    "properties": {
      "environment": {
        "type": ["object", "null"],
        "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
      },
      "env_file": {"type": "string"},
      "network": {
        "type": ["object", "null"],
        "properties": {
          "cacerts": {"type": "string"},
          "verify": {"type": ["boolean", "string"]}
        }
      },
      "backend": {
        "type": ["object", "null"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "library": {"type": "string"},
          "basedir": {"type": "string"},
          "keyring": {"type": "string"},
          "keyring_path": {"type": "string"},
          "fernet_password": {"type": ["string", "number"]},
          "server": {"type": "string"},
          "port": {"type": ["integer", "string"]},
          "secret": {"type": "string"},
          "scheme": {"type": "string", "enum": ["http", "https"]},
          "root": {"type": "string"},
          "ssh_port": {"type": ["integer", "string"]},
          "ssh_user": {"type": "string"},
          "ssh_key": {"type": "string"},
          "known_hosts": {"type": "string"},
          "url": {"type": "string"},
          "Bucket": {"type": "string"},
          "Region": {"type": "string"},
          "ServerSideEncryption": {"type": "string"},
          "RequestPayer": {"type": "string"},
          "Endpoint": {"type": "string"},
          "RoleArn": {"type": "string"},
          "creds": {"type": "string", "enum": ["auto", "static"]},
          "AccessKeyId": {"type": "string"},
          "SecretAccessKey": {"type": "string"}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(documentSchema)

// Validate checks a whole configuration document against the embedded schema.
func Validate(c *Config) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(c.Map()))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	field := ""
	for _, desc := range result.Errors() {
		if field == "" {
			field = desc.Field()
		}
		problems = append(problems, desc.String())
	}
	return mcerrors.ConfigurationError{
		Field:   field,
		Message: "configuration does not match schema: " + strings.Join(problems, "; "),
	}
}
