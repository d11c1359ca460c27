package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// AdapterFactory opens adapters by engine tag.
type AdapterFactory interface {
	// Open returns a connected adapter with a private connection.
	// An unknown engine yields a configuration error before any network I/O.
	Open(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) (ConnectionAdapter, error)

	// Supports reports whether engine has a registered adapter.
	Supports(engine models.Engine) bool

	// ListEngines returns info for all registered adapters.
	ListEngines() []AdapterInfo
}

type registryFactory struct {
	opts Options
}

// NewAdapterFactory returns a factory backed by the global registry.
func NewAdapterFactory(opts Options) AdapterFactory {
	return &registryFactory{opts: opts}
}

func (f *registryFactory) Open(ctx context.Context, engine models.Engine, profile models.ConnectionProfile, secrets models.SecretBundle) (ConnectionAdapter, error) {
	factory := Lookup(engine)
	if factory == nil {
		return nil, apperrors.NewConfigurationError("unsupported engine: %s", engine)
	}
	opts := f.opts.ForProfile(profile)
	opts.Logger = opts.Logger.Named(string(engine))
	return factory(ctx, profile, secrets, opts)
}

func (f *registryFactory) Supports(engine models.Engine) bool {
	return IsRegistered(engine)
}

func (f *registryFactory) ListEngines() []AdapterInfo {
	return RegisteredAdapters()
}

var _ AdapterFactory = (*registryFactory)(nil)
