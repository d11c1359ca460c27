package vault

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringProvider stores bundles in the operating system keyring
// (macOS Keychain, Secret Service, Windows Credential Manager).
type KeyringProvider struct {
	service string
}

var _ Provider = (*KeyringProvider)(nil)

func NewKeyringProvider(service string) *KeyringProvider {
	return &KeyringProvider{service: service}
}

func (p *KeyringProvider) Name() string { return "keyring" }

func (p *KeyringProvider) Init(ctx context.Context) error {
	if p.service == "" {
		return errors.New("keyring service name is required")
	}
	return nil
}

func (p *KeyringProvider) Put(ctx context.Context, key string, payload []byte) error {
	return keyring.Set(p.service, key, string(payload))
}

func (p *KeyringProvider) Fetch(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := keyring.Get(p.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (p *KeyringProvider) Remove(ctx context.Context, key string) (bool, error) {
	err := keyring.Delete(p.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
