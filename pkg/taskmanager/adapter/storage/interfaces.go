// Package storage defines the object storage abstraction used by the file publication and
// run-history export task types. Buckets are taken from the connection configuration; object
// names are slash-separated.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download and Copy for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// StorageConnection is a named connection to one bucket.
type StorageConnection interface {
	// Upload writes data to objectName, replacing any existing object.
	Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error
	// Download opens objectName. The caller closes the reader.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object whose name starts with prefix.
	ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. A missing object is not an error.
	DeleteObject(ctx context.Context, objectName string) error
	// Copy copies src to dst within the bucket.
	Copy(ctx context.Context, src, dst string) error
	// Exists reports whether objectName exists.
	Exists(ctx context.Context, objectName string) (bool, error)
	Close() error
	// Type returns the storage type (e.g., "gcs").
	Type() string
	// Name returns the connection name.
	Name() string
}

// StorageProvider provides connections of one storage type.
type StorageProvider interface {
	// GetConnection returns the named connection, creating it on first use.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider.
	Type() string
}

// StorageConnectionResolver resolves a connection by name.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is the Fx value group collecting every StorageProvider.
const StorageProviderGroup = "storage_providers"
