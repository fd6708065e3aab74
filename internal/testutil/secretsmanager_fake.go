package testutil

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory stand-in for the subset of
// *secretsmanager.Client used by the aws backend.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret ids to their current SecretString
	Secrets map[string]string

	// Err, when set, is returned by every call
	Err error

	// Calls counts requests by operation name
	Calls map[string]int
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Calls:   make(map[string]int),
	}
}

// Secret returns the stored string for id.
func (f *FakeSecretsManagerClient) Secret(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Secrets[id]
	return v, ok
}

func (f *FakeSecretsManagerClient) record(op string) error {
	f.Calls[op]++
	return f.Err
}

func notFound() error {
	return &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
}

// GetSecretValue returns the stored string or ResourceNotFoundException.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetSecretValue"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.SecretId)
	v, ok := f.Secrets[id]
	if !ok {
		return nil, notFound()
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(id),
		SecretString: aws.String(v),
	}, nil
}

// PutSecretValue replaces an existing secret.
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutSecretValue"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.SecretId)
	if _, ok := f.Secrets[id]; !ok {
		return nil, notFound()
	}
	f.Secrets[id] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{Name: aws.String(id)}, nil
}

// CreateSecret adds a new secret.
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateSecret"); err != nil {
		return nil, err
	}

	id := aws.ToString(params.Name)
	if _, ok := f.Secrets[id]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("the secret already exists")}
	}
	f.Secrets[id] = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{Name: aws.String(id)}, nil
}
