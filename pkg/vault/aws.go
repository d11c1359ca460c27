package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// secretsAPI is the subset of the Secrets Manager client used by AWSProvider.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// AWSOptions configures the Secrets Manager provider. Static credentials are
// optional; without them the default credential chain is used.
type AWSOptions struct {
	Region          string
	SecretPrefix    string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AWSProvider stores each bundle as one secret named <prefix><key>.
type AWSProvider struct {
	opts   AWSOptions
	client secretsAPI
}

var _ Provider = (*AWSProvider)(nil)

func NewAWSProvider(opts AWSOptions) *AWSProvider {
	return &AWSProvider{opts: opts}
}

func (p *AWSProvider) Name() string { return "aws" }

// Init builds the Secrets Manager client unless one was injected.
func (p *AWSProvider) Init(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(p.opts.Region)}
	if p.opts.AccessKeyID != "" && p.opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.opts.AccessKeyID, p.opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	p.client = secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if p.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.opts.Endpoint)
		}
	})
	return nil
}

func (p *AWSProvider) secretID(key string) string {
	return p.opts.SecretPrefix + key
}

func (p *AWSProvider) Put(ctx context.Context, key string, payload []byte) error {
	id := p.secretID(key)
	_, err := p.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(id),
		SecretString: aws.String(string(payload)),
	})
	if !isNotFound(err) {
		return err
	}

	_, err = p.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(id),
		SecretString: aws.String(string(payload)),
	})
	return err
}

func (p *AWSProvider) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID(key)),
	})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if out.SecretString != nil {
		return []byte(*out.SecretString), true, nil
	}
	return out.SecretBinary, len(out.SecretBinary) > 0, nil
}

func (p *AWSProvider) Remove(ctx context.Context, key string) (bool, error) {
	_, err := p.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(p.secretID(key)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}
