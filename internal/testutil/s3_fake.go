package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeS3Object is one stored object and the request parameters it was
// written with.
type FakeS3Object struct {
	Body                 []byte
	ServerSideEncryption types.ServerSideEncryption
	RequestPayer         types.RequestPayer
}

// FakeS3Client is an in-memory stand-in for the subset of *s3.Client used
// by the aws backend.
type FakeS3Client struct {
	mu sync.Mutex

	// Objects maps "bucket/key" to stored objects
	Objects map[string]*FakeS3Object

	// Err, when set, is returned by every call
	Err error

	// Calls counts requests by operation name
	Calls map[string]int
}

// NewFakeS3Client creates an empty fake.
func NewFakeS3Client() *FakeS3Client {
	return &FakeS3Client{
		Objects: make(map[string]*FakeS3Object),
		Calls:   make(map[string]int),
	}
}

func fakeS3Path(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (f *FakeS3Client) record(op string) error {
	f.Calls[op]++
	return f.Err
}

// Object returns the stored object for bucket/key, or nil.
func (f *FakeS3Client) Object(bucket, key string) *FakeS3Object {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Objects[bucket+"/"+key]
}

// PutObject stores the request body.
func (f *FakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutObject"); err != nil {
		return nil, err
	}

	var body []byte
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, err
		}
		body = data
	}
	f.Objects[fakeS3Path(params.Bucket, params.Key)] = &FakeS3Object{
		Body:                 body,
		ServerSideEncryption: params.ServerSideEncryption,
		RequestPayer:         params.RequestPayer,
	}
	return &s3.PutObjectOutput{}, nil
}

// GetObject returns the stored body or a NoSuchKey error.
func (f *FakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetObject"); err != nil {
		return nil, err
	}

	obj, ok := f.Objects[fakeS3Path(params.Bucket, params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Body)),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}, nil
}

// HeadObject reports whether the object exists.
func (f *FakeS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("HeadObject"); err != nil {
		return nil, err
	}

	obj, ok := f.Objects[fakeS3Path(params.Bucket, params.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(obj.Body)))}, nil
}
