// Package filepublication provides the "FilePublication" task type, which publishes a local file
// as an object on a storage connection.
//
// Execute uploads to "<target>.tmp". Commit keeps the previous object as "<target>.bak" and moves
// the staged object into place. Rolling back a committed run restores the backup.
package filepublication

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// Name is the task type name.
const Name = "FilePublication"

// Parameter names.
const (
	ParamStorage = "storage"
	ParamFile    = "file"
	ParamTarget  = "target"
)

// Object name suffixes.
const (
	TempSuffix   = ".tmp"
	BackupSuffix = ".bak"
)

// FilePublicationTaskType publishes files through storage connections.
type FilePublicationTaskType struct {
	resolver storage.StorageConnectionResolver
}

var (
	_ tasktype.TaskType = (*FilePublicationTaskType)(nil)
	_ tasktype.Cleaner  = (*FilePublicationTaskType)(nil)
)

// New returns the task type resolving connections through resolver.
func New(resolver storage.StorageConnectionResolver) *FilePublicationTaskType {
	return &FilePublicationTaskType{resolver: resolver}
}

func (t *FilePublicationTaskType) Name() string { return Name }

func (t *FilePublicationTaskType) ParameterInfo() map[string]tasktype.ParameterInfo {
	return map[string]tasktype.ParameterInfo{
		ParamStorage: {Type: parameter.String, Required: true},
		ParamFile:    {Type: parameter.File, Required: true},
		ParamTarget:  {Type: parameter.String, Required: true},
	}
}

func (t *FilePublicationTaskType) Execute(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	path := tc.String(ParamFile)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	target := tc.String(ParamTarget)
	if err := conn.Upload(ctx, target+TempSuffix, f, mime.TypeByExtension(filepath.Ext(target))); err != nil {
		return err
	}
	logger.Debugf("Task '%s' staged '%s' as '%s%s'.", tc.Task.Name, path, target, TempSuffix)
	return nil
}

func (t *FilePublicationTaskType) Commit(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	return Promote(ctx, conn, tc.String(ParamTarget))
}

func (t *FilePublicationTaskType) Rollback(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	return Demote(ctx, conn, tc.String(ParamTarget), committed(tc))
}

// Cleanup removes the published object and anything staged for it.
func (t *FilePublicationTaskType) Cleanup(ctx context.Context, tc *tasktype.TaskContext) error {
	conn, err := t.resolver.ResolveStorageConnection(ctx, tc.String(ParamStorage))
	if err != nil {
		return err
	}
	target := tc.String(ParamTarget)
	for _, name := range []string{target, target + TempSuffix, target + BackupSuffix} {
		if err := conn.DeleteObject(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Promote backs up target and replaces it with the staged object.
func Promote(ctx context.Context, conn storage.StorageConnection, target string) error {
	exists, err := conn.Exists(ctx, target)
	if err != nil {
		return err
	}
	if exists {
		if err := conn.Copy(ctx, target, target+BackupSuffix); err != nil {
			return err
		}
	} else if err := conn.DeleteObject(ctx, target+BackupSuffix); err != nil {
		return err
	}
	if err := conn.Copy(ctx, target+TempSuffix, target); err != nil {
		return err
	}
	return conn.DeleteObject(ctx, target+TempSuffix)
}

// Demote discards the staged object. When the run was committed, the backup taken by Promote is
// restored, or target is removed if there was nothing to back up.
func Demote(ctx context.Context, conn storage.StorageConnection, target string, wasCommitted bool) error {
	if err := conn.DeleteObject(ctx, target+TempSuffix); err != nil {
		return err
	}
	if !wasCommitted {
		return nil
	}
	backup, err := conn.Exists(ctx, target+BackupSuffix)
	if err != nil {
		return err
	}
	if !backup {
		return conn.DeleteObject(ctx, target)
	}
	if err := conn.Copy(ctx, target+BackupSuffix, target); err != nil {
		return err
	}
	return conn.DeleteObject(ctx, target+BackupSuffix)
}

func committed(tc *tasktype.TaskContext) bool {
	if tc.Run == nil {
		return false
	}
	return tc.Run.Status == model.RunStatusCommitted || tc.Run.Status == model.RunStatusCommitting
}
