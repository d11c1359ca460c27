package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const testFileKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func TestEnvProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	t.Setenv("TEST_VAULT_PROD_DB", "")
	client := NewClient(NewEnvProvider("TEST_VAULT_"), zap.NewNop())

	_, err := client.Store(ctx, "prod-db", models.NewSecretBundle(map[string]any{"password": 42}))
	require.NoError(t, err)
	assert.NotEmpty(t, os.Getenv("TEST_VAULT_PROD_DB"))

	got, err := client.Get(ctx, "prod-db")
	require.NoError(t, err)
	assert.Equal(t, "42", got.Password())

	removed, err := client.Delete(ctx, "prod-db")
	require.NoError(t, err)
	assert.True(t, removed)

	got, err = client.Get(ctx, "prod-db")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnvProvider_ReadsPreexistingVariable(t *testing.T) {
	t.Setenv("TEST_VAULT_STAGING", `{"username":"svc","password":"p"}`)
	client := NewClient(NewEnvProvider("TEST_VAULT_"), zap.NewNop())

	got, err := client.Get(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, "svc", got.Username())
}

func TestFileProvider_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "secrets.vault")

	first := NewClient(NewFileProvider(path, testFileKey), zap.NewNop())
	_, err := first.Store(ctx, "env-1", models.SecretBundle{"username": "u", "password": "p"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"p"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := NewClient(NewFileProvider(path, testFileKey), zap.NewNop())
	got, err := second.Get(ctx, "env-1")
	require.NoError(t, err)
	assert.Equal(t, "p", got.Password())
}

func TestFileProvider_WrongKeyIsVaultError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets.vault")

	_, err := NewClient(NewFileProvider(path, testFileKey), zap.NewNop()).Store(ctx, "k", models.SecretBundle{"password": "p"})
	require.NoError(t, err)

	_, err = NewClient(NewFileProvider(path, "other-key"), zap.NewNop()).Get(ctx, "k")
	assert.True(t, apperrors.IsKind(err, apperrors.KindVault))
}

func TestFileProvider_CorruptFileFailsInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.vault")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	client := NewClient(NewFileProvider(path, testFileKey), zap.NewNop())
	err := client.Init(context.Background())
	assert.True(t, apperrors.IsKind(err, apperrors.KindVault))
}

func TestFileProvider_EmptyKeyFailsInit(t *testing.T) {
	client := NewClient(NewFileProvider(filepath.Join(t.TempDir(), "v"), ""), zap.NewNop())
	assert.Error(t, client.Init(context.Background()))
}

func TestKeyringProvider_RoundTrip(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	client := NewClient(NewKeyringProvider("ekaya-dataagents-test"), zap.NewNop())

	got, err := client.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = client.Store(ctx, "k", models.SecretBundle{"accessToken": "dapi123"})
	require.NoError(t, err)

	got, err = client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "dapi123", got.Get("accessToken"))

	removed, err := client.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = client.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

// fakeSecrets mimics Secrets Manager semantics: PutSecretValue fails for unknown ids.
type fakeSecrets struct {
	secrets map[string]string
	creates int
}

func notFound() error {
	return &types.ResourceNotFoundException{Message: aws.String("not found")}
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	v, ok := f.secrets[*in.SecretId]
	if !ok {
		return nil, notFound()
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func (f *fakeSecrets) PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if _, ok := f.secrets[*in.SecretId]; !ok {
		return nil, notFound()
	}
	f.secrets[*in.SecretId] = *in.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (f *fakeSecrets) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.creates++
	f.secrets[*in.Name] = *in.SecretString
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (f *fakeSecrets) DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	if _, ok := f.secrets[*in.SecretId]; !ok {
		return nil, notFound()
	}
	delete(f.secrets, *in.SecretId)
	return &secretsmanager.DeleteSecretOutput{}, nil
}

func TestAWSProvider_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSecrets{secrets: map[string]string{}}
	provider := NewAWSProvider(AWSOptions{SecretPrefix: "dataagents/"})
	provider.client = fake
	client := NewClient(provider, zap.NewNop())

	_, err := client.Store(ctx, "env-1", models.SecretBundle{"password": "a"})
	require.NoError(t, err)
	_, err = client.Store(ctx, "env-1", models.SecretBundle{"password": "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.creates)
	assert.Contains(t, fake.secrets, "dataagents/env-1")

	got, err := client.Get(ctx, "env-1")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Password())

	removed, err := client.Delete(ctx, "env-1")
	require.NoError(t, err)
	assert.True(t, removed)

	got, err = client.Get(ctx, "env-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"env", "env", false},
		{"file", "file", false},
		{"keyring", "keyring", false},
		{"aws", "aws", false},
		{"hashicorp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(config.VaultConfig{Provider: tt.provider})
			if tt.wantErr {
				assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
