package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/config"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// ConnectionFactory opens a connection from its decoded configuration.
type ConnectionFactory func(cfg storageconfig.StorageConfig, name string) (StorageConnection, error)

// CachingProvider is a StorageProvider that opens connections lazily and caches them by name.
type CachingProvider struct {
	cfg         *config.Config
	typ         string
	open        ConnectionFactory
	connections map[string]StorageConnection
	mu          sync.RWMutex
}

var _ StorageProvider = (*CachingProvider)(nil)

// NewCachingProvider returns a provider for storage type typ.
func NewCachingProvider(cfg *config.Config, typ string, open ConnectionFactory) *CachingProvider {
	return &CachingProvider{
		cfg:         cfg,
		typ:         typ,
		open:        open,
		connections: make(map[string]StorageConnection),
	}
}

func (p *CachingProvider) GetConnection(name string) (StorageConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring lock
	if conn, ok = p.connections[name]; ok {
		return conn, nil
	}

	raw, ok := p.cfg.RawStorageConfig(name)
	if !ok {
		return nil, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	storageCfg, err := storageconfig.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("storage connection '%s': %w", name, err)
	}
	if storageCfg.Type != p.typ {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, p.typ, storageCfg.Type)
	}

	conn, err = p.open(storageCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s storage connection '%s': %w", p.typ, name, err)
	}
	p.connections[name] = conn
	logger.Debugf("Created new %s storage connection '%s'.", p.typ, name)
	return conn, nil
}

func (p *CachingProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close %s storage connection '%s': %w", p.typ, name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

func (p *CachingProvider) Type() string {
	return p.typ
}

// ForceReconnect closes the named connection and opens it again.
func (p *CachingProvider) ForceReconnect(name string) (StorageConnection, error) {
	p.mu.Lock()
	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to gracefully close %s storage connection '%s' during force reconnect: %v", p.typ, name, err)
		}
		delete(p.connections, name)
	}
	p.mu.Unlock()

	logger.Debugf("Forcing reconnect for %s storage connection '%s'.", p.typ, name)
	return p.GetConnection(name)
}
