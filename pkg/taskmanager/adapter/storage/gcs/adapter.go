// Package gcs implements the storage adapter on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	storageconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/config"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// ProviderType is the storage type handled by this package.
const ProviderType = "gcs"

type gcsAdapter struct {
	client *gcstorage.Client
	bucket *gcstorage.BucketHandle
	name   string
}

var _ storage.StorageConnection = (*gcsAdapter)(nil)

// ClientOptions builds the client options for cfg.
func ClientOptions(cfg storageconfig.StorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		if cfg.CredentialsFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}
	return opts
}

// NewGCSAdapter creates a client for cfg.BucketName.
func NewGCSAdapter(cfg storageconfig.StorageConfig, name string) (storage.StorageConnection, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': bucket_name must be specified in configuration", name)
	}
	client, err := gcstorage.NewClient(context.Background(), ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return &gcsAdapter{client: client, bucket: client.Bucket(cfg.BucketName), name: name}, nil
}

func (a *gcsAdapter) Close() error {
	return a.client.Close()
}

func (a *gcsAdapter) Type() string { return ProviderType }

func (a *gcsAdapter) Name() string { return a.name }

func (a *gcsAdapter) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	w := a.bucket.Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	logger.Debugf("Uploaded '%s' (gcs adapter '%s').", objectName, a.name)
	return nil
}

func (a *gcsAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := a.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, a.wrap(objectName, err)
	}
	return r, nil
}

func (a *gcsAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	it := a.bucket.Objects(ctx, &gcstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix '%s' (gcs adapter '%s'): %w", prefix, a.name, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

func (a *gcsAdapter) DeleteObject(ctx context.Context, objectName string) error {
	err := a.bucket.Object(objectName).Delete(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		logger.Warnf("Attempted to delete non-existent object '%s' (gcs adapter '%s').", objectName, a.name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	return nil
}

func (a *gcsAdapter) Copy(ctx context.Context, src, dst string) error {
	_, err := a.bucket.Object(dst).CopierFrom(a.bucket.Object(src)).Run(ctx)
	if err != nil {
		return a.wrap(src, err)
	}
	return nil
}

func (a *gcsAdapter) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := a.bucket.Object(objectName).Attrs(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat '%s' (gcs adapter '%s'): %w", objectName, a.name, err)
	}
	return true, nil
}

func (a *gcsAdapter) wrap(objectName string, err error) error {
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("gcs adapter '%s': '%s': %w", a.name, objectName, storage.ErrObjectNotFound)
	}
	return fmt.Errorf("gcs adapter '%s': '%s': %w", a.name, objectName, err)
}

// NewGCSProvider returns the provider for "gcs" connections.
func NewGCSProvider(cfg *config.Config) storage.StorageProvider {
	return storage.NewCachingProvider(cfg, ProviderType, NewGCSAdapter)
}
