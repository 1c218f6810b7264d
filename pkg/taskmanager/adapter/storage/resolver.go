package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	storageconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/config"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
)

// ConnectionResolver routes a connection name to the provider of its configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *config.Config
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)

// ResolverParams are the Fx dependencies of NewConnectionResolver.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver indexes the providers by storage type.
func NewConnectionResolver(p ResolverParams) *ConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &ConnectionResolver{providers: providers, cfg: p.Cfg}
}

func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	raw, ok := r.cfg.RawStorageConfig(name)
	if !ok {
		return nil, fmt.Errorf("StorageConnectionResolver: storage connection '%s' not found in configuration", name)
	}
	cfg, err := storageconfig.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("StorageConnectionResolver: connection '%s': %w", name, err)
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("StorageConnectionResolver: no storage provider for type '%s' (connection '%s')", cfg.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("StorageConnectionResolver: failed to get connection '%s': %w", name, err)
	}
	return conn, nil
}

// CloseAll closes the connections of every provider.
func (r *ConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Module provides the resolver. Providers come from the local and gcs packages.
var Module = fx.Options(
	fx.Provide(NewConnectionResolver),
	fx.Provide(func(r *ConnectionResolver) StorageConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *ConnectionResolver) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return r.CloseAll() }})
	}),
)
