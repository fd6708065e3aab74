package backends

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
)

const (
	credsAuto   = "auto"
	credsStatic = "static"
)

// AWSOptions are the settings of an aws backend section.
type AWSOptions struct {
	Bucket               string
	Region               string
	ServerSideEncryption types.ServerSideEncryption
	RequestPayer         types.RequestPayer

	// Endpoint overrides the service endpoints, e.g. for LocalStack or MinIO
	Endpoint string
	RoleArn  string

	// Creds is "auto" (default credential chain) or "static"
	Creds           string
	AccessKeyID     string
	SecretAccessKey string
}

// ParseAWSOptions reads and validates an aws backend section.
func ParseAWSOptions(h backend.Host, cfg *config.Config) (AWSOptions, error) {
	var opts AWSOptions
	var sse, payer string

	fields := []struct {
		key string
		dst *string
		def string
	}{
		{"Bucket", &opts.Bucket, ""},
		{"Region", &opts.Region, ""},
		{"ServerSideEncryption", &sse, ""},
		{"RequestPayer", &payer, ""},
		{"Endpoint", &opts.Endpoint, ""},
		{"RoleArn", &opts.RoleArn, ""},
		{"creds", &opts.Creds, credsAuto},
		{"AccessKeyId", &opts.AccessKeyID, ""},
		{"SecretAccessKey", &opts.SecretAccessKey, ""},
	}
	for _, f := range fields {
		v, err := cfg.GetString(h.Environment, f.key, f.def)
		if err != nil {
			return AWSOptions{}, err
		}
		*f.dst = v
	}

	if sse != "" {
		if !contains(types.ServerSideEncryption("").Values(), sse) {
			return AWSOptions{}, invalidChoice(cfg.Field("ServerSideEncryption"), sse, types.ServerSideEncryption("").Values())
		}
		opts.ServerSideEncryption = types.ServerSideEncryption(sse)
	}
	if payer != "" {
		if !contains(types.RequestPayer("").Values(), payer) {
			return AWSOptions{}, invalidChoice(cfg.Field("RequestPayer"), payer, types.RequestPayer("").Values())
		}
		opts.RequestPayer = types.RequestPayer(payer)
	}

	switch opts.Creds {
	case credsAuto:
	case credsStatic:
		if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
			return AWSOptions{}, mcerrors.ConfigurationError{
				Field:      cfg.Field("creds"),
				Value:      opts.Creds,
				Message:    "static credentials require AccessKeyId and SecretAccessKey",
				Suggestion: "Reference them from the environment, e.g. AccessKeyId: ${env.AWS_ACCESS_KEY_ID}",
			}
		}
	default:
		return AWSOptions{}, invalidChoice(cfg.Field("creds"), opts.Creds, []string{credsAuto, credsStatic})
	}

	return opts, nil
}

func contains[T ~string](values []T, v string) bool {
	for _, candidate := range values {
		if string(candidate) == v {
			return true
		}
	}
	return false
}

func invalidChoice[T ~string](field, value string, allowed []T) error {
	return mcerrors.ConfigurationError{
		Field:      field,
		Value:      value,
		Message:    "unsupported value",
		Suggestion: fmt.Sprintf("Use one of %v", allowed),
	}
}
