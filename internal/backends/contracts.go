package backends

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// S3ClientAPI is the subset of *s3.Client used by the aws backend.
type S3ClientAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// SecretsManagerClientAPI is the subset of *secretsmanager.Client used by
// the aws backend.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// RemoteShell runs one command on a remote host and returns its standard
// output.
type RemoteShell interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// WebDAVClient is the subset of *gowebdav.Client used by the nas backend.
type WebDAVClient interface {
	Read(path string) ([]byte, error)
	ReadStream(path string) (io.ReadCloser, error)
	Write(path string, data []byte, mode os.FileMode) error
	WriteStream(path string, stream io.Reader, mode os.FileMode) error
	Stat(path string) (os.FileInfo, error)
}
