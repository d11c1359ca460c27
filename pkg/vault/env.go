package vault

import (
	"context"
	"os"
)

// EnvProvider keeps bundles in process environment variables named <prefix><KEY>,
// each holding a JSON object. Writes are visible to this process only.
type EnvProvider struct {
	prefix string
}

var _ Provider = (*EnvProvider)(nil)

func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Init(ctx context.Context) error { return nil }

func (p *EnvProvider) variable(key string) string {
	return p.prefix + envName(key)
}

func (p *EnvProvider) Put(ctx context.Context, key string, payload []byte) error {
	return os.Setenv(p.variable(key), string(payload))
}

func (p *EnvProvider) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := os.LookupEnv(p.variable(key))
	if !ok || v == "" {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (p *EnvProvider) Remove(ctx context.Context, key string) (bool, error) {
	name := p.variable(key)
	if _, ok := os.LookupEnv(name); !ok {
		return false, nil
	}
	return true, os.Unsetenv(name)
}
