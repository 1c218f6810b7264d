package sql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

const newestFirst = "start_time DESC, id DESC"

// AcquireRun locks the task row for update before checking for a holder, so concurrent firings
// of the same task serialize on that row lock.
func (r *SQLRepository) AcquireRun(ctx context.Context, run *model.Run) error {
	const op = "SQLRepository.AcquireRun"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var task taskEntity
		found, err := take(db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", run.TaskID), &task)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "%s: task id '%s'", op, run.TaskID, repository.ErrTaskNotFound)
		}
		var holders []runEntity
		if err := db.Where("task_id = ? AND (end_time IS NULL OR status = ?)", run.TaskID, string(model.RunStatusCommitting)).
			Order(newestFirst).Limit(1).Find(&holders).Error; err != nil {
			return err
		}
		if len(holders) > 0 {
			return exception.NewTaskManagerErrorf(module, "task '%s' is held by run '%s' (%s)", task.Name, holders[0].ID, holders[0].Status, repository.ErrTaskBusy)
		}
		return db.Create(fromDomainRun(run)).Error
	})
	return dbError(op, err)
}

func (r *SQLRepository) SaveRun(ctx context.Context, run *model.Run) error {
	const op = "SQLRepository.SaveRun"
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	var n int64
	if err := db.Model(&runEntity{}).Where("id = ?", run.ID).Count(&n).Error; err != nil {
		return dbError(op, err)
	}
	if n == 0 {
		return exception.NewTaskManagerErrorf(module, "run '%s'", run.ID, repository.ErrRunNotFound)
	}
	entity := fromDomainRun(run)
	err = db.Model(&runEntity{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":   entity.Status,
		"end_time": entity.EndTime,
		"message":  entity.Message,
	}).Error
	return dbError(op, err)
}

// findRun returns the newest run matching the conditions, or nil.
func (r *SQLRepository) findRun(ctx context.Context, op string, query interface{}, args ...interface{}) (*model.Run, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entities []runEntity
	if err := db.Where(query, args...).Order(newestFirst).Limit(1).Find(&entities).Error; err != nil {
		return nil, dbError(op, err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainRun(&entities[0]), nil
}

func (r *SQLRepository) GetCurrentRun(ctx context.Context, taskID string) (*model.Run, error) {
	return r.findRun(ctx, "SQLRepository.GetCurrentRun", "task_id = ? AND end_time IS NULL", taskID)
}

func (r *SQLRepository) GetCommittingRun(ctx context.Context, taskID string) (*model.Run, error) {
	return r.findRun(ctx, "SQLRepository.GetCommittingRun", "task_id = ? AND status = ?", taskID, string(model.RunStatusCommitting))
}

func (r *SQLRepository) GetLatestRun(ctx context.Context, batchElementID string) (*model.Run, error) {
	return r.findRun(ctx, "SQLRepository.GetLatestRun", "batch_element_id = ?", batchElementID)
}

func (r *SQLRepository) GetRunsByBatchRun(ctx context.Context, batchRunID string) ([]*model.Run, error) {
	const op = "SQLRepository.GetRunsByBatchRun"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := runsOf(db, batchRunID)
	return runs, dbError(op, err)
}

func runsOf(db *gorm.DB, batchRunID string) ([]*model.Run, error) {
	var entities []runEntity
	if err := db.Where("batch_run_id = ?", batchRunID).Order("start_time, id").Find(&entities).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Run, len(entities))
	for i := range entities {
		out[i] = toDomainRun(&entities[i])
	}
	return out, nil
}

func (r *SQLRepository) SaveBatchRun(ctx context.Context, br *model.BatchRun) error {
	const op = "SQLRepository.SaveBatchRun"
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	return dbError(op, db.Save(fromDomainBatchRun(br)).Error)
}

func (r *SQLRepository) GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error) {
	const op = "SQLRepository.GetBatchRun"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity batchRunEntity
	found, err := take(db.Where("id = ?", id), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "batch run '%s'", id, repository.ErrBatchRunNotFound)
	}
	br := toDomainBatchRun(&entity)
	if br.Runs, err = runsOf(db, id); err != nil {
		return nil, dbError(op, err)
	}
	return br, nil
}

func (r *SQLRepository) GetBatchRuns(ctx context.Context, batchID string) ([]*model.BatchRun, error) {
	return r.findBatchRuns(ctx, "SQLRepository.GetBatchRuns", newestFirst, "batch_id = ?", batchID)
}

func (r *SQLRepository) GetUnfinishedBatchRuns(ctx context.Context) ([]*model.BatchRun, error) {
	return r.findBatchRuns(ctx, "SQLRepository.GetUnfinishedBatchRuns", "start_time, id", "end_time IS NULL")
}

func (r *SQLRepository) findBatchRuns(ctx context.Context, op, order string, query interface{}, args ...interface{}) ([]*model.BatchRun, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entities []batchRunEntity
	if err := db.Where(query, args...).Order(order).Find(&entities).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]*model.BatchRun, len(entities))
	for i := range entities {
		br := toDomainBatchRun(&entities[i])
		if br.Runs, err = runsOf(db, br.ID); err != nil {
			return nil, dbError(op, err)
		}
		out[i] = br
	}
	return out, nil
}
