// Package copytable provides the "CopyTable" task type. Execute stages a copy of the source into
// a temporary table, commit swaps it in for the target and rollback drops it.
package copytable

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// Name is the task type name.
const Name = "CopyTable"

// Parameter names.
const (
	ParamDatabase = "database"
	ParamSource   = "source"
	ParamTarget   = "target"
)

// TempPrefix is prepended to the target name for the staging table.
const TempPrefix = "_temp_"

// CopyTableTaskType copies a table, or the result of a SELECT, within one database connection.
type CopyTableTaskType struct {
	resolver database.DBConnectionResolver
}

var (
	_ tasktype.TaskType = (*CopyTableTaskType)(nil)
	_ tasktype.Cleaner  = (*CopyTableTaskType)(nil)
)

// New returns the task type resolving connections through resolver.
func New(resolver database.DBConnectionResolver) *CopyTableTaskType {
	return &CopyTableTaskType{resolver: resolver}
}

func (t *CopyTableTaskType) Name() string { return Name }

func (t *CopyTableTaskType) ParameterInfo() map[string]tasktype.ParameterInfo {
	return map[string]tasktype.ParameterInfo{
		ParamDatabase: {Type: parameter.String, Required: true},
		ParamSource:   {Type: parameter.SQL, Required: true},
		ParamTarget:   {Type: parameter.SQL, Required: true},
	}
}

func (t *CopyTableTaskType) Execute(ctx context.Context, tc *tasktype.TaskContext) error {
	db, err := t.db(ctx, tc)
	if err != nil {
		return err
	}
	temp := TempTable(tc.String(ParamTarget))
	if err := db.Migrator().DropTable(temp); err != nil {
		return fmt.Errorf("failed to drop stale table '%s': %w", temp, err)
	}

	source := strings.TrimSpace(tc.String(ParamSource))
	var result *gorm.DB
	if isQuery(source) {
		result = db.Exec("CREATE TABLE ? AS "+source, clause.Table{Name: temp})
	} else {
		result = db.Exec("CREATE TABLE ? AS SELECT * FROM ?", clause.Table{Name: temp}, clause.Table{Name: source})
	}
	if result.Error != nil {
		return fmt.Errorf("failed to copy '%s' into '%s': %w", source, temp, result.Error)
	}
	logger.Debugf("Task '%s' staged '%s' into '%s'.", tc.Task.Name, source, temp)
	return nil
}

func (t *CopyTableTaskType) Commit(ctx context.Context, tc *tasktype.TaskContext) error {
	db, err := t.db(ctx, tc)
	if err != nil {
		return err
	}
	target := tc.String(ParamTarget)
	return db.Transaction(func(tx *gorm.DB) error {
		m := tx.Migrator()
		if m.HasTable(target) {
			if err := m.DropTable(target); err != nil {
				return fmt.Errorf("failed to drop '%s': %w", target, err)
			}
		}
		if err := m.RenameTable(TempTable(target), target); err != nil {
			return fmt.Errorf("failed to rename '%s' to '%s': %w", TempTable(target), target, err)
		}
		return nil
	})
}

func (t *CopyTableTaskType) Rollback(ctx context.Context, tc *tasktype.TaskContext) error {
	db, err := t.db(ctx, tc)
	if err != nil {
		return err
	}
	return db.Migrator().DropTable(TempTable(tc.String(ParamTarget)))
}

// Cleanup drops the target table.
func (t *CopyTableTaskType) Cleanup(ctx context.Context, tc *tasktype.TaskContext) error {
	db, err := t.db(ctx, tc)
	if err != nil {
		return err
	}
	return db.Migrator().DropTable(tc.String(ParamTarget))
}

func (t *CopyTableTaskType) db(ctx context.Context, tc *tasktype.TaskContext) (*gorm.DB, error) {
	name := tc.String(ParamDatabase)
	conn, err := t.resolver.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	db, err := gormadapter.GormDBOf(conn)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// TempTable returns the staging table name for target.
func TempTable(target string) string {
	return TempPrefix + target
}

func isQuery(source string) bool {
	return len(source) > 7 && strings.EqualFold(source[:7], "SELECT ")
}
