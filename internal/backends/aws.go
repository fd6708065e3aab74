package backends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/systmms/multicloud/pkg/backend"
	"github.com/systmms/multicloud/pkg/config"
	mcerrors "github.com/systmms/multicloud/pkg/errors"
	"github.com/systmms/multicloud/pkg/network"
)

// AWSBackend stores objects in an S3 bucket and secrets in Secrets
// Manager under "<service>/<name>".
type AWSBackend struct {
	service string
	options AWSOptions
	s3      S3ClientAPI
	secrets SecretsManagerClientAPI
}

// AWSOption is a functional option for NewAWSBackend.
type AWSOption func(*AWSBackend)

// WithS3Client sets a custom S3 client (for testing).
func WithS3Client(client S3ClientAPI) AWSOption {
	return func(b *AWSBackend) {
		b.s3 = client
	}
}

// WithSecretsManagerClient sets a custom Secrets Manager client (for
// testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(b *AWSBackend) {
		b.secrets = client
	}
}

// NewAWSBackend creates an aws backend. SDK clients not supplied through
// options are built from the default credential chain, the options and
// the network settings.
func NewAWSBackend(ctx context.Context, service string, options AWSOptions, net *network.Network, opts ...AWSOption) (*AWSBackend, error) {
	b := &AWSBackend{
		service: service,
		options: options,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.s3 != nil && b.secrets != nil {
		return b, nil
	}

	cfg, err := loadAWSConfig(ctx, options, net)
	if err != nil {
		return nil, err
	}

	if b.s3 == nil {
		b.s3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if options.Endpoint != "" {
				o.BaseEndpoint = aws.String(options.Endpoint)
				o.UsePathStyle = true
			}
		})
	}
	if b.secrets == nil {
		b.secrets = secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
			if options.Endpoint != "" {
				o.BaseEndpoint = aws.String(options.Endpoint)
			}
		})
	}
	return b, nil
}

func loadAWSConfig(ctx context.Context, options AWSOptions, net *network.Network) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	if options.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(options.Region))
	}
	if options.Creds == credsStatic {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKeyID, options.SecretAccessKey, ""),
		))
	}
	if net != nil && (net.CACerts != "" || !net.Verify) {
		client, err := net.HTTPClient()
		if err != nil {
			return aws.Config{}, err
		}
		configOpts = append(configOpts, awsconfig.WithHTTPClient(client))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if options.RoleArn != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), options.RoleArn, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "multicloud"
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return cfg, nil
}

// NewAWSFromConfig is the Factory for type "aws".
func NewAWSFromConfig(h backend.Host, cfg *config.Config) (backend.Backend, error) {
	options, err := ParseAWSOptions(h, cfg)
	if err != nil {
		return nil, err
	}
	return NewAWSBackend(context.Background(), h.Service, options, h.Network)
}

// Name implements backend.Backend.
func (b *AWSBackend) Name() string {
	return TypeAWS
}

// Options returns the parsed section.
func (b *AWSBackend) Options() AWSOptions {
	return b.options
}

// Secret implements backend.Backend.
func (b *AWSBackend) Secret(name string) (backend.Secret, error) {
	if err := backend.ValidateSecretName(name); err != nil {
		return nil, err
	}
	return &AWSSecret{id: b.service + "/" + name, name: name, client: b.secrets}, nil
}

// Object implements backend.Backend.
func (b *AWSBackend) Object(key string) (backend.Object, error) {
	if err := backend.ValidateKey(key); err != nil {
		return nil, err
	}
	if b.options.Bucket == "" {
		return nil, mcerrors.ConfigurationError{
			Field:      "backend.Bucket",
			Message:    "object storage requires the 'Bucket' setting",
			Suggestion: "Add 'Bucket' to the aws backend section",
		}
	}
	return &AWSObject{key: key, options: b.options, client: b.s3}, nil
}

// AWSSecret is a Secrets Manager entry holding a JSON SecretString.
type AWSSecret struct {
	id     string
	name   string
	client SecretsManagerClientAPI
}

// Name implements backend.Secret.
func (s *AWSSecret) Name() string {
	return s.name
}

// ID returns the Secrets Manager secret id.
func (s *AWSSecret) ID() string {
	return s.id
}

// Get implements backend.Secret.
func (s *AWSSecret) Get(ctx context.Context) (interface{}, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.id),
	})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, mcerrors.NotFoundError{Backend: TypeAWS, Kind: "secret", Key: s.id}
		}
		return nil, mcerrors.TransportError{Backend: TypeAWS, Op: "GetSecretValue", Err: err}
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.id)
	}
	return backend.DecodeValue(aws.ToString(out.SecretString))
}

// Set writes a new version, creating the secret if it does not exist.
func (s *AWSSecret) Set(ctx context.Context, value interface{}) error {
	text, err := backend.EncodeValue(value)
	if err != nil {
		return err
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(s.id),
		SecretString: aws.String(text),
	})
	var nf *smtypes.ResourceNotFoundException
	if errors.As(err, &nf) {
		_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(s.id),
			SecretString: aws.String(text),
		})
		if err != nil {
			return mcerrors.TransportError{Backend: TypeAWS, Op: "CreateSecret", Err: err}
		}
		return nil
	}
	if err != nil {
		return mcerrors.TransportError{Backend: TypeAWS, Op: "PutSecretValue", Err: err}
	}
	return nil
}

// AWSObject is one S3 object.
type AWSObject struct {
	key     string
	options AWSOptions
	client  S3ClientAPI
}

// Key implements backend.Object.
func (o *AWSObject) Key() string {
	return o.key
}

func (o *AWSObject) mapError(op string, err error) error {
	if isS3NotFound(err) {
		return mcerrors.NotFoundError{Backend: TypeAWS, Kind: "object", Key: o.options.Bucket + "/" + o.key}
	}
	return mcerrors.TransportError{Backend: TypeAWS, Op: op, Err: err}
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// PutBytes implements backend.Object.
func (o *AWSObject) PutBytes(ctx context.Context, data []byte) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(o.options.Bucket),
		Key:                  aws.String(o.key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ServerSideEncryption: o.options.ServerSideEncryption,
		RequestPayer:         o.options.RequestPayer,
	})
	if err != nil {
		return o.mapError("PutObject", err)
	}
	return nil
}

// GetBytes implements backend.Object.
func (o *AWSObject) GetBytes(ctx context.Context) ([]byte, error) {
	r, err := o.GetFile(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mcerrors.TransportError{Backend: TypeAWS, Op: "GetObject", Err: err}
	}
	return data, nil
}

// PutFile buffers writes and uploads them with a single PutObject on
// Close.
func (o *AWSObject) PutFile(ctx context.Context) (io.WriteCloser, error) {
	return &bufferedUpload{commit: func(data []byte) error {
		return o.PutBytes(ctx, data)
	}}, nil
}

// GetFile implements backend.Object.
func (o *AWSObject) GetFile(ctx context.Context) (io.ReadCloser, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(o.options.Bucket),
		Key:          aws.String(o.key),
		RequestPayer: o.options.RequestPayer,
	})
	if err != nil {
		return nil, o.mapError("GetObject", err)
	}
	return out.Body, nil
}

// Exists implements backend.Object.
func (o *AWSObject) Exists(ctx context.Context) (bool, error) {
	_, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(o.options.Bucket),
		Key:          aws.String(o.key),
		RequestPayer: o.options.RequestPayer,
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, mcerrors.TransportError{Backend: TypeAWS, Op: "HeadObject", Err: err}
}

// bufferedUpload collects a stream in memory and hands it to commit on
// Close.
type bufferedUpload struct {
	buf    bytes.Buffer
	commit func([]byte) error
	closed bool
}

func (u *bufferedUpload) Write(p []byte) (int, error) {
	if u.closed {
		return 0, errors.New("write to closed upload")
	}
	return u.buf.Write(p)
}

// Abort drops the buffered data.
func (u *bufferedUpload) Abort() error {
	u.closed = true
	u.buf.Reset()
	return nil
}

func (u *bufferedUpload) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.commit(u.buf.Bytes())
}
