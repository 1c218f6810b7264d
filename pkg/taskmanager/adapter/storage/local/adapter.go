// Package local provides a local file system implementation of the storage adapter interfaces.
// The bucket is a directory below BaseDir.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	storageconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/config"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// ProviderType is the storage type handled by this package.
const ProviderType = "local"

type localAdapter struct {
	root string
	name string
}

var _ storage.StorageConnection = (*localAdapter)(nil)

// NewLocalAdapter opens BaseDir/BucketName, creating it if needed.
func NewLocalAdapter(cfg storageconfig.StorageConfig, name string) (storage.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage adapter '%s': BaseDir must be specified in configuration", name)
	}
	root, err := filepath.Abs(filepath.Join(cfg.BaseDir, cfg.BucketName))
	if err != nil {
		return nil, fmt.Errorf("local storage adapter '%s': %w", name, err)
	}
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("local storage adapter '%s': failed to create '%s': %w", name, root, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage adapter '%s': failed to stat '%s': %w", name, root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage adapter '%s': '%s' is not a directory", name, root)
	}
	return &localAdapter{root: root, name: name}, nil
}

func (a *localAdapter) Close() error {
	logger.Debugf("Local storage adapter '%s' closed.", a.name)
	return nil
}

func (a *localAdapter) Type() string { return ProviderType }

func (a *localAdapter) Name() string { return a.name }

func (a *localAdapter) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", fullPath, err)
	}

	// Write to a sibling temp file so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file for '%s': %w", fullPath, err)
	}
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write data to '%s': %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write data to '%s': %w", fullPath, err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move data to '%s': %w", fullPath, err)
	}
	logger.Debugf("Uploaded '%s' (local adapter '%s').", objectName, a.name)
	return nil
}

func (a *localAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("local storage adapter '%s': '%s': %w", a.name, objectName, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open '%s': %w", fullPath, err)
	}
	return file, nil
}

func (a *localAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(a.root, path)
		if err != nil {
			return err
		}
		objectName := filepath.ToSlash(rel)
		if !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(objectName)
	})
	if err != nil {
		return fmt.Errorf("failed to list objects with prefix '%s' (local adapter '%s'): %w", prefix, a.name, err)
	}
	return nil
}

func (a *localAdapter) DeleteObject(ctx context.Context, objectName string) error {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Attempted to delete non-existent object '%s' (local adapter '%s').", objectName, a.name)
			return nil
		}
		return fmt.Errorf("failed to delete '%s': %w", fullPath, err)
	}
	logger.Debugf("Deleted object '%s' (local adapter '%s').", objectName, a.name)
	return nil
}

func (a *localAdapter) Copy(ctx context.Context, src, dst string) error {
	in, err := a.Download(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()
	return a.Upload(ctx, dst, in, "")
}

func (a *localAdapter) Exists(ctx context.Context, objectName string) (bool, error) {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// resolvePath maps an object name below root, refusing names that escape it.
func (a *localAdapter) resolvePath(objectName string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.FromSlash(objectName))
	if fullPath != a.root && !strings.HasPrefix(fullPath, a.root+string(filepath.Separator)) {
		return "", fmt.Errorf("object '%s' resolves outside of '%s'", objectName, a.root)
	}
	return fullPath, nil
}

// NewLocalProvider returns the provider for "local" connections.
func NewLocalProvider(cfg *config.Config) storage.StorageProvider {
	return storage.NewCachingProvider(cfg, ProviderType, NewLocalAdapter)
}
