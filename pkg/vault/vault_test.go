package vault

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// memoryProvider is an in-memory Provider that counts Init calls.
type memoryProvider struct {
	mu        sync.Mutex
	data      map[string][]byte
	initCalls atomic.Int32
	initErr   error
	fetchErr  error
}

func newMemoryProvider() *memoryProvider {
	return &memoryProvider{data: map[string][]byte{}}
}

func (m *memoryProvider) Name() string { return "memory" }

func (m *memoryProvider) Init(ctx context.Context) error {
	m.initCalls.Add(1)
	return m.initErr
}

func (m *memoryProvider) Put(ctx context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = payload
	return nil
}

func (m *memoryProvider) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	if m.fetchErr != nil {
		return nil, false, m.fetchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryProvider) Remove(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func TestClient_StoreGetRoundTripCoercesToStrings(t *testing.T) {
	ctx := context.Background()
	client := NewClient(newMemoryProvider(), zap.NewNop())

	bundle := models.NewSecretBundle(map[string]any{"username": "u", "password": 1234})
	ok, err := client.Store(ctx, "k", bundle)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1234", got.Password())
	assert.Equal(t, "u", got.Username())
}

func TestClient_StoreOverwrites(t *testing.T) {
	ctx := context.Background()
	client := NewClient(newMemoryProvider(), nil)

	_, err := client.Store(ctx, "k", models.SecretBundle{"password": "old"})
	require.NoError(t, err)
	_, err = client.Store(ctx, "k", models.SecretBundle{"password": "new"})
	require.NoError(t, err)

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password())
}

func TestClient_GetUnknownKeyReturnsNil(t *testing.T) {
	client := NewClient(newMemoryProvider(), zap.NewNop())

	got, err := client.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := NewClient(newMemoryProvider(), zap.NewNop())
	_, err := client.Store(ctx, "k", models.SecretBundle{"password": "p"})
	require.NoError(t, err)

	removed, err := client.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = client.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestClient_InitRunsOnceUnderConcurrency(t *testing.T) {
	provider := newMemoryProvider()
	client := NewClient(provider, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = client.Get(context.Background(), "k")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.initCalls.Load())
}

func TestClient_InitFailureIsVaultErrorAndSticky(t *testing.T) {
	provider := newMemoryProvider()
	provider.initErr = errors.New("keychain locked")
	client := NewClient(provider, zap.NewNop())

	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindVault, apperrors.KindOf(err))

	_, err = client.Store(context.Background(), "k", models.SecretBundle{"a": "b"})
	require.Error(t, err)
	assert.Equal(t, int32(1), provider.initCalls.Load())
}

func TestClient_FetchFailureIsVaultError(t *testing.T) {
	provider := newMemoryProvider()
	provider.fetchErr = errors.New("throttled")
	client := NewClient(provider, zap.NewNop())

	_, err := client.Get(context.Background(), "k")
	assert.True(t, apperrors.IsKind(err, apperrors.KindVault))
}

func TestClient_CorruptPayloadDoesNotLeakContent(t *testing.T) {
	provider := newMemoryProvider()
	provider.data["k"] = []byte(`password=hunter22 not json`)
	client := NewClient(provider, zap.NewNop())

	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindVault))
	assert.NotContains(t, err.Error(), "hunter22")
}

func TestClient_EmptyKeyIsConfigurationError(t *testing.T) {
	client := NewClient(newMemoryProvider(), zap.NewNop())

	_, err := client.Get(context.Background(), "  ")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestClient_WithoutProvider(t *testing.T) {
	client := NewClient(nil, nil)

	assert.False(t, client.HasProvider())
	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.True(t, apperrors.IsKind(err, apperrors.KindVault))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "PROD_ORDERS_DB", envName("prod/orders-db"))
	assert.Equal(t, "ENV_1", envName("env.1"))
}
