package sql

import (
	"context"

	"gorm.io/gorm"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// elementOrder keeps active elements in index order and inactive ones after them.
const elementOrder = "CASE WHEN idx IS NULL THEN 1 ELSE 0 END, idx, id"

// visibleBatches restricts a batch query to the visibility rule.
const visibleBatches = "tm_batch.remove_stamp = 0 AND (tm_batch.configuration_id IS NULL OR tm_batch.configuration_id IN " +
	"(SELECT id FROM tm_configuration WHERE remove_stamp = 0 AND template = ?))"

func checkFullName(db *gorm.DB, op, batchID, fullName string) error {
	var n int64
	if err := db.Model(&batchEntity{}).
		Where("full_name = ? AND remove_stamp = 0 AND id <> ?", fullName, batchID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return exception.NewTaskManagerErrorf(module, "%s: '%s'", op, fullName, repository.ErrDuplicateFullName)
	}
	return nil
}

func (r *SQLRepository) SaveBatch(ctx context.Context, b *model.Batch) error {
	const op = "SQLRepository.SaveBatch"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		configurationName := b.ConfigurationName
		if b.ConfigurationID != nil {
			var cfg configurationEntity
			found, err := take(db.Where("id = ?", *b.ConfigurationID), &cfg)
			if err != nil {
				return err
			}
			if !found {
				return exception.NewTaskManagerErrorf(module, "%s: configuration id '%s' of batch '%s'", op, *b.ConfigurationID, b.Name, repository.ErrConfigurationNotFound)
			}
			configurationName = cfg.Name
		}
		return r.saveBatch(db, op, b, configurationName, after)
	})
	return dbError(op, err)
}

// stageBatch copies b and its elements with the configuration name and element indexes that are
// about to be stored. b itself is only updated once the transaction commits.
func stageBatch(b *model.Batch, configurationName string) *model.Batch {
	staged := *b
	staged.ConfigurationName = configurationName
	staged.Elements = make([]*model.BatchElement, len(b.Elements))
	for i, el := range b.Elements {
		c := *el
		c.BatchID = b.ID
		staged.Elements[i] = &c
	}
	staged.ReindexElements()
	return &staged
}

// saveBatch writes the batch row and its elements under configurationName.
func (r *SQLRepository) saveBatch(db *gorm.DB, op string, b *model.Batch, configurationName string, after *afterCommit) error {
	if err := model.ValidateName("batch", b.Name); err != nil {
		return exception.NewTaskManagerError(module, op+": "+err.Error(), repository.ErrInvalidName, false)
	}
	staged := stageBatch(b, configurationName)
	fullName := staged.FullName()
	if staged.Active {
		if err := checkFullName(db, op, staged.ID, fullName); err != nil {
			return err
		}
	}

	var existing batchEntity
	found, err := take(db.Where("id = ?", staged.ID), &existing)
	if err != nil {
		return err
	}
	if found {
		if existing.Version != staged.Version {
			return optimisticLock(op, "batch", fullName, existing.Version, staged.Version)
		}
		res := db.Model(&batchEntity{}).
			Where("id = ? AND version = ?", staged.ID, staged.Version).
			Updates(map[string]interface{}{
				"configuration_id": staged.ConfigurationID,
				"name":             staged.Name,
				"full_name":        fullName,
				"description":      staged.Description,
				"workspace":        staged.Workspace,
				"frequency":        staged.Frequency,
				"enabled":          staged.Enabled,
				"remove_stamp":     removeStamp(staged.Active, existing.RemoveStamp),
				"version":          staged.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return optimisticLock(op, "batch", fullName, existing.Version+1, staged.Version)
		}
	} else {
		entity := &batchEntity{
			ID:              staged.ID,
			ConfigurationID: staged.ConfigurationID,
			Name:            staged.Name,
			FullName:        fullName,
			Description:     staged.Description,
			Workspace:       staged.Workspace,
			Frequency:       staged.Frequency,
			Enabled:         staged.Enabled,
			RemoveStamp:     removeStamp(staged.Active, 0),
			Version:         staged.Version + 1,
		}
		if err := db.Create(entity).Error; err != nil {
			return err
		}
	}

	var stored []batchElementEntity
	if err := db.Where("batch_id = ?", staged.ID).Find(&stored).Error; err != nil {
		return err
	}
	kept := make(map[string]bool, len(staged.Elements))
	for _, el := range staged.Elements {
		kept[el.ID] = true
	}
	var dropped []string
	for _, s := range stored {
		if !kept[s.ID] {
			dropped = append(dropped, s.ID)
		}
	}
	if len(dropped) > 0 {
		if err := deleteElementRows(db, dropped); err != nil {
			return err
		}
	}
	for _, el := range staged.Elements {
		if err := db.Save(fromDomainBatchElement(el)).Error; err != nil {
			return err
		}
	}
	names, err := taskNames(db, staged.Elements)
	if err != nil {
		return err
	}

	after.add(func() {
		b.ConfigurationName = staged.ConfigurationName
		for i, el := range b.Elements {
			el.BatchID = staged.Elements[i].BatchID
			el.Index = staged.Elements[i].Index
			if name, ok := names[el.TaskID]; ok {
				el.TaskName = name
			}
		}
		b.Version++
	})
	return nil
}

func taskNames(db *gorm.DB, elements []*model.BatchElement) (map[string]string, error) {
	names := make(map[string]string, len(elements))
	if len(elements) == 0 {
		return names, nil
	}
	ids := make([]string, len(elements))
	for i, el := range elements {
		ids[i] = el.TaskID
	}
	var tasks []taskEntity
	if err := db.Select("id", "name").Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	return names, nil
}

// assembleBatch loads the elements of a batch row.
func (r *SQLRepository) assembleBatch(db *gorm.DB, entity *batchEntity, configurationName string) (*model.Batch, error) {
	if entity.ConfigurationID != nil && configurationName == "" {
		var cfg configurationEntity
		if err := db.Select("name").Where("id = ?", *entity.ConfigurationID).Take(&cfg).Error; err != nil {
			return nil, err
		}
		configurationName = cfg.Name
	}
	b := toDomainBatch(entity, configurationName)

	var elements []batchElementEntity
	if err := db.Where("batch_id = ?", b.ID).Order(elementOrder).Find(&elements).Error; err != nil {
		return nil, err
	}
	b.Elements = make([]*model.BatchElement, 0, len(elements))
	for i := range elements {
		b.Elements = append(b.Elements, toDomainBatchElement(&elements[i], ""))
	}
	names, err := taskNames(db, b.Elements)
	if err != nil {
		return nil, err
	}
	for _, el := range b.Elements {
		el.TaskName = names[el.TaskID]
	}
	return b, nil
}

func (r *SQLRepository) GetBatch(ctx context.Context, fullName string) (*model.Batch, error) {
	const op = "SQLRepository.GetBatch"
	cfgName, _, scoped := model.SplitFullName(fullName)
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Where("full_name = ? AND remove_stamp = 0", fullName)
	if scoped {
		query = query.Where("configuration_id IN (SELECT id FROM tm_configuration WHERE remove_stamp = 0 AND name = ?)", cfgName)
	} else {
		query = query.Where("configuration_id IS NULL")
	}
	var entity batchEntity
	found, err := take(query, &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "batch '%s'", fullName, repository.ErrBatchNotFound)
	}
	b, err := r.assembleBatch(db, &entity, cfgName)
	return b, dbError(op, err)
}

func (r *SQLRepository) GetBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	const op = "SQLRepository.GetBatchByID"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity batchEntity
	found, err := take(db.Where("id = ?", id), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "batch id '%s'", id, repository.ErrBatchNotFound)
	}
	b, err := r.assembleBatch(db, &entity, "")
	return b, dbError(op, err)
}

func (r *SQLRepository) GetBatches(ctx context.Context) ([]*model.Batch, error) {
	const op = "SQLRepository.GetBatches"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entities []batchEntity
	if err := db.Where(visibleBatches, false).Order("full_name").Find(&entities).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]*model.Batch, 0, len(entities))
	for i := range entities {
		b, err := r.assembleBatch(db, &entities[i], "")
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *SQLRepository) GetBatchElement(ctx context.Context, batchID, taskID string) (*model.BatchElement, error) {
	const op = "SQLRepository.GetBatchElement"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity batchElementEntity
	found, err := take(db.Where("batch_id = ? AND task_id = ?", batchID, taskID), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "task '%s' in batch '%s'", taskID, batchID, repository.ErrBatchElementNotFound)
	}
	el := toDomainBatchElement(&entity, "")
	names, err := taskNames(db, []*model.BatchElement{el})
	if err != nil {
		return nil, dbError(op, err)
	}
	el.TaskName = names[taskID]
	return el, nil
}

func (r *SQLRepository) RemoveBatch(ctx context.Context, b *model.Batch) error {
	const op = "SQLRepository.RemoveBatch"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var existing batchEntity
		found, err := take(db.Where("id = ?", b.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
		}
		version := existing.Version + 1
		if err := db.Model(&batchEntity{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"remove_stamp": removeStamp(false, existing.RemoveStamp),
			"version":      version,
		}).Error; err != nil {
			return err
		}
		after.add(func() {
			b.Active = false
			b.Version = version
		})
		return nil
	})
	return dbError(op, err)
}

func (r *SQLRepository) DeleteBatch(ctx context.Context, b *model.Batch) error {
	const op = "SQLRepository.DeleteBatch"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var n int64
		if err := db.Model(&batchEntity{}).Where("id = ?", b.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
		}
		return deleteBatchRows(db, b.ID)
	})
	return dbError(op, err)
}

// deleteBatchRows removes a batch row, its elements and all run history, children first.
func deleteBatchRows(db *gorm.DB, batchID string) error {
	if err := db.Where("batch_element_id IN (SELECT id FROM tm_batch_element WHERE batch_id = ?)", batchID).
		Delete(&runEntity{}).Error; err != nil {
		return err
	}
	if err := db.Where("batch_run_id IN (SELECT id FROM tm_batch_run WHERE batch_id = ?)", batchID).
		Delete(&runEntity{}).Error; err != nil {
		return err
	}
	if err := db.Where("batch_id = ?", batchID).Delete(&batchRunEntity{}).Error; err != nil {
		return err
	}
	if err := db.Where("batch_id = ?", batchID).Delete(&batchElementEntity{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", batchID).Delete(&batchEntity{}).Error
}

func (r *SQLRepository) DeleteBatchElement(ctx context.Context, b *model.Batch, element *model.BatchElement) error {
	const op = "SQLRepository.DeleteBatchElement"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var existing batchEntity
		found, err := take(db.Where("id = ?", b.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
		}
		var stored batchElementEntity
		found, err = take(db.Where("batch_id = ? AND task_id = ?", b.ID, element.TaskID), &stored)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "element '%s' of batch '%s'", element.ID, b.FullName(), repository.ErrBatchElementNotFound)
		}
		if err := deleteElementRows(db, []string{stored.ID}); err != nil {
			return err
		}
		version, err := reindexBatch(db, b.ID, existing.Version)
		if err != nil {
			return err
		}
		after.add(func() {
			kept := make([]*model.BatchElement, 0, len(b.Elements))
			for _, el := range b.Elements {
				if el.TaskID != element.TaskID {
					kept = append(kept, el)
				}
			}
			b.Elements = kept
			b.ReindexElements()
			b.Version = version
		})
		return nil
	})
	return dbError(op, err)
}

func deleteElementRows(db *gorm.DB, elementIDs []string) error {
	if err := db.Where("batch_element_id IN ?", elementIDs).Delete(&runEntity{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", elementIDs).Delete(&batchElementEntity{}).Error
}

// reindexBatch renumbers the active elements of a batch contiguously and bumps its version.
func reindexBatch(db *gorm.DB, batchID string, version int) (int, error) {
	var elements []batchElementEntity
	if err := db.Where("batch_id = ?", batchID).Order(elementOrder).Find(&elements).Error; err != nil {
		return 0, err
	}
	i := 0
	for _, el := range elements {
		var idx interface{}
		if el.Active {
			idx = i
			i++
		}
		if err := db.Model(&batchElementEntity{}).Where("id = ?", el.ID).Update("idx", idx).Error; err != nil {
			return 0, err
		}
	}
	if err := db.Model(&batchEntity{}).Where("id = ?", batchID).Update("version", version+1).Error; err != nil {
		return 0, err
	}
	return version + 1, nil
}
