package sql

import (
	"context"

	"gorm.io/gorm"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

func (r *SQLRepository) assembleTask(db *gorm.DB, entity *taskEntity) (*model.Task, error) {
	t := toDomainTask(entity)
	var params []parameterEntity
	if err := db.Where("task_id = ?", t.ID).Find(&params).Error; err != nil {
		return nil, err
	}
	for i := range params {
		t.Parameters[params[i].Name] = toDomainParameter(&params[i])
	}
	return t, nil
}

func (r *SQLRepository) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	const op = "SQLRepository.GetTaskByID"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity taskEntity
	found, err := take(db.Where("id = ?", id), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "task id '%s'", id, repository.ErrTaskNotFound)
	}
	t, err := r.assembleTask(db, &entity)
	return t, dbError(op, err)
}

func (r *SQLRepository) GetTasksAvailableForBatch(ctx context.Context, b *model.Batch) ([]*model.Task, error) {
	const op = "SQLRepository.GetTasksAvailableForBatch"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Where("remove_stamp = 0").
		Where("id NOT IN (SELECT task_id FROM tm_batch_element WHERE batch_id = ?)", b.ID)
	if b.ConfigurationID == nil {
		query = query.Where("configuration_id IN (SELECT id FROM tm_configuration WHERE remove_stamp = 0 AND template = ?)", false)
	} else {
		query = query.Where("configuration_id IN (SELECT id FROM tm_configuration WHERE remove_stamp = 0 AND id = ?)", *b.ConfigurationID)
	}
	var entities []taskEntity
	if err := query.Order("name").Find(&entities).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]*model.Task, 0, len(entities))
	for i := range entities {
		t, err := r.assembleTask(db, &entities[i])
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// RemoveTask soft-removes the task and deactivates the batch elements pointing at it.
func (r *SQLRepository) RemoveTask(ctx context.Context, t *model.Task) error {
	const op = "SQLRepository.RemoveTask"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var existing taskEntity
		found, err := take(db.Where("id = ?", t.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "task '%s'", t.Name, repository.ErrTaskNotFound)
		}
		if err := db.Model(&taskEntity{}).Where("id = ?", t.ID).
			Update("remove_stamp", removeStamp(false, existing.RemoveStamp)).Error; err != nil {
			return err
		}

		var elements []batchElementEntity
		if err := db.Where("task_id = ? AND active = ?", t.ID, true).Find(&elements).Error; err != nil {
			return err
		}
		for _, el := range elements {
			if err := db.Model(&batchElementEntity{}).Where("id = ?", el.ID).Updates(map[string]interface{}{
				"active": false,
				"idx":    nil,
			}).Error; err != nil {
				return err
			}
			if err := bumpAndReindex(db, el.BatchID); err != nil {
				return err
			}
		}
		after.add(func() { t.Active = false })
		return nil
	})
	return dbError(op, err)
}

func (r *SQLRepository) DeleteTask(ctx context.Context, t *model.Task) error {
	const op = "SQLRepository.DeleteTask"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var n int64
		if err := db.Model(&taskEntity{}).Where("id = ?", t.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return exception.NewTaskManagerErrorf(module, "task '%s'", t.Name, repository.ErrTaskNotFound)
		}
		if err := detachTask(db, t.ID); err != nil {
			return err
		}
		if err := db.Where("task_id = ?", t.ID).Delete(&parameterEntity{}).Error; err != nil {
			return err
		}
		return db.Where("id = ?", t.ID).Delete(&taskEntity{}).Error
	})
	return dbError(op, err)
}

// detachTask deletes every batch element of the task with its runs and reindexes the batches.
func detachTask(db *gorm.DB, taskID string) error {
	var elements []batchElementEntity
	if err := db.Where("task_id = ?", taskID).Find(&elements).Error; err != nil {
		return err
	}
	if len(elements) == 0 {
		return nil
	}
	ids := make([]string, len(elements))
	for i, el := range elements {
		ids[i] = el.ID
	}
	if err := deleteElementRows(db, ids); err != nil {
		return err
	}
	for _, el := range elements {
		if err := bumpAndReindex(db, el.BatchID); err != nil {
			return err
		}
	}
	return nil
}

func bumpAndReindex(db *gorm.DB, batchID string) error {
	var b batchEntity
	found, err := take(db.Select("id", "version").Where("id = ?", batchID), &b)
	if err != nil || !found {
		return err
	}
	_, err = reindexBatch(db, batchID, b.Version)
	return err
}
