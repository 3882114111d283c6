// Package secrets retrieves the API token from the managed secret store.
package secrets

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AccessError is fatal to the whole run: without the token no endpoint can
// authenticate.
type AccessError struct {
	Name string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("accessing secret %s: %v", e.Name, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// Provider resolves a named secret version to its string value.
type Provider interface {
	GetSecret(ctx context.Context, name, version string) (string, error)
}

// ManagerProvider is the Secrets Manager implementation of Provider.
type ManagerProvider struct {
	client *secretsmanager.Client
}

func NewManagerProvider(ctx context.Context) (*ManagerProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &ManagerProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecret fetches one secret value. version "latest" (or empty) resolves
// to the current stage; anything else is treated as an explicit version id.
func (p *ManagerProvider) GetSecret(ctx context.Context, name, version string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)}
	if version != "" && version != "latest" {
		input.VersionId = aws.String(version)
	}

	out, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return "", &AccessError{Name: name, Err: err}
	}
	if out.SecretString == nil {
		return "", &AccessError{Name: name, Err: fmt.Errorf("secret has no string value")}
	}

	log.Printf("[Secrets] Retrieved secret %s", name)
	return *out.SecretString, nil
}
