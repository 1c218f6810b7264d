package sql

import (
	"context"

	"gorm.io/gorm"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

func (r *SQLRepository) SaveConfiguration(ctx context.Context, cfg *model.Configuration) error {
	const op = "SQLRepository.SaveConfiguration"
	if err := model.ValidateName("configuration", cfg.Name); err != nil {
		return exception.NewTaskManagerError(module, op+": "+err.Error(), repository.ErrInvalidName, false)
	}

	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		if cfg.Active {
			var n int64
			if err := db.Model(&configurationEntity{}).
				Where("name = ? AND remove_stamp = 0 AND id <> ?", cfg.Name, cfg.ID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return exception.NewTaskManagerErrorf(module, "%s: configuration '%s'", op, cfg.Name, repository.ErrDuplicateName)
			}
		}

		var existing configurationEntity
		found, err := take(db.Where("id = ?", cfg.ID), &existing)
		if err != nil {
			return err
		}
		if found {
			if existing.Version != cfg.Version {
				return optimisticLock(op, "configuration", cfg.Name, existing.Version, cfg.Version)
			}
			res := db.Model(&configurationEntity{}).
				Where("id = ? AND version = ?", cfg.ID, cfg.Version).
				Updates(map[string]interface{}{
					"name":         cfg.Name,
					"description":  cfg.Description,
					"template":     cfg.Template,
					"workspace":    cfg.Workspace,
					"remove_stamp": removeStamp(cfg.Active, existing.RemoveStamp),
					"version":      cfg.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return optimisticLock(op, "configuration", cfg.Name, existing.Version+1, cfg.Version)
			}
		} else {
			entity := &configurationEntity{
				ID:          cfg.ID,
				Name:        cfg.Name,
				Description: cfg.Description,
				Template:    cfg.Template,
				Workspace:   cfg.Workspace,
				RemoveStamp: removeStamp(cfg.Active, 0),
				Version:     cfg.Version + 1,
			}
			if err := db.Create(entity).Error; err != nil {
				return err
			}
		}

		if err := r.saveAttributes(db, cfg); err != nil {
			return err
		}
		for _, t := range cfg.Tasks {
			if err := r.saveTask(db, cfg.ID, t); err != nil {
				return err
			}
		}

		// renaming moves the full name of batches that are not part of the aggregate as well
		var others []batchEntity
		if err := db.Where("configuration_id = ?", cfg.ID).Find(&others).Error; err != nil {
			return err
		}
		for i := range others {
			if _, inAggregate := cfg.Batches[others[i].Name]; inAggregate {
				continue
			}
			fullName := model.FullName(cfg.Name, others[i].Name, true)
			if fullName == others[i].FullName {
				continue
			}
			if others[i].RemoveStamp == 0 {
				if err := checkFullName(db, op, others[i].ID, fullName); err != nil {
					return err
				}
			}
			if err := db.Model(&batchEntity{}).Where("id = ?", others[i].ID).Update("full_name", fullName).Error; err != nil {
				return err
			}
		}

		for _, b := range cfg.Batches {
			id := cfg.ID
			b.ConfigurationID = &id
			b.ConfigurationName = cfg.Name
			if err := r.saveBatch(db, op, b, cfg.Name, after); err != nil {
				return err
			}
		}
		after.add(func() { cfg.Version++ })
		return nil
	})
	return dbError(op, err)
}

func (r *SQLRepository) saveAttributes(db *gorm.DB, cfg *model.Configuration) error {
	ids := make([]string, 0, len(cfg.Attributes))
	for _, a := range cfg.Attributes {
		a.ConfigurationID = cfg.ID
		ids = append(ids, a.ID)
	}
	del := db.Where("configuration_id = ?", cfg.ID)
	if len(ids) > 0 {
		del = del.Where("id NOT IN ?", ids)
	}
	if err := del.Delete(&attributeEntity{}).Error; err != nil {
		return err
	}
	for _, a := range cfg.Attributes {
		if err := db.Save(fromDomainAttribute(a)).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) saveTask(db *gorm.DB, configurationID string, t *model.Task) error {
	t.ConfigurationID = configurationID
	var current int64
	var existing taskEntity
	found, err := take(db.Where("id = ?", t.ID), &existing)
	if err != nil {
		return err
	}
	if found {
		current = existing.RemoveStamp
	}
	entity := &taskEntity{
		ID:              t.ID,
		ConfigurationID: configurationID,
		Name:            t.Name,
		Type:            t.Type,
		RemoveStamp:     removeStamp(t.Active, current),
	}
	if err := db.Save(entity).Error; err != nil {
		return err
	}

	ids := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		p.TaskID = t.ID
		ids = append(ids, p.ID)
	}
	del := db.Where("task_id = ?", t.ID)
	if len(ids) > 0 {
		del = del.Where("id NOT IN ?", ids)
	}
	if err := del.Delete(&parameterEntity{}).Error; err != nil {
		return err
	}
	for _, p := range t.Parameters {
		if err := db.Save(fromDomainParameter(p)).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLRepository) GetConfiguration(ctx context.Context, name string) (*model.Configuration, error) {
	const op = "SQLRepository.GetConfiguration"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity configurationEntity
	found, err := take(db.Where("name = ? AND remove_stamp = 0", name), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "configuration '%s'", name, repository.ErrConfigurationNotFound)
	}
	cfg, err := r.assembleConfiguration(db, &entity)
	return cfg, dbError(op, err)
}

func (r *SQLRepository) GetConfigurationByID(ctx context.Context, id string) (*model.Configuration, error) {
	const op = "SQLRepository.GetConfigurationByID"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var entity configurationEntity
	found, err := take(db.Where("id = ?", id), &entity)
	if err != nil {
		return nil, dbError(op, err)
	}
	if !found {
		return nil, exception.NewTaskManagerErrorf(module, "configuration id '%s'", id, repository.ErrConfigurationNotFound)
	}
	cfg, err := r.assembleConfiguration(db, &entity)
	return cfg, dbError(op, err)
}

func (r *SQLRepository) GetConfigurations(ctx context.Context, templates *bool) ([]*model.Configuration, error) {
	const op = "SQLRepository.GetConfigurations"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Where("remove_stamp = 0")
	if templates != nil {
		query = query.Where("template = ?", *templates)
	}
	var entities []configurationEntity
	if err := query.Order("name").Find(&entities).Error; err != nil {
		return nil, dbError(op, err)
	}
	out := make([]*model.Configuration, 0, len(entities))
	for i := range entities {
		cfg, err := r.assembleConfiguration(db, &entities[i])
		if err != nil {
			return nil, dbError(op, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// assembleConfiguration loads the children of a configuration row.
func (r *SQLRepository) assembleConfiguration(db *gorm.DB, entity *configurationEntity) (*model.Configuration, error) {
	cfg := toDomainConfiguration(entity)

	var atts []attributeEntity
	if err := db.Where("configuration_id = ?", cfg.ID).Find(&atts).Error; err != nil {
		return nil, err
	}
	for i := range atts {
		cfg.Attributes[atts[i].Name] = toDomainAttribute(&atts[i])
	}

	var tasks []taskEntity
	if err := db.Where("configuration_id = ?", cfg.ID).Find(&tasks).Error; err != nil {
		return nil, err
	}
	for i := range tasks {
		t, err := r.assembleTask(db, &tasks[i])
		if err != nil {
			return nil, err
		}
		cfg.Tasks[t.Name] = t
	}

	var batches []batchEntity
	if err := db.Where("configuration_id = ?", cfg.ID).Find(&batches).Error; err != nil {
		return nil, err
	}
	for i := range batches {
		b, err := r.assembleBatch(db, &batches[i], cfg.Name)
		if err != nil {
			return nil, err
		}
		cfg.Batches[b.Name] = b
	}
	return cfg, nil
}

func (r *SQLRepository) RemoveConfiguration(ctx context.Context, cfg *model.Configuration) error {
	const op = "SQLRepository.RemoveConfiguration"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var existing configurationEntity
		found, err := take(db.Where("id = ?", cfg.ID), &existing)
		if err != nil {
			return err
		}
		if !found {
			return exception.NewTaskManagerErrorf(module, "configuration '%s'", cfg.Name, repository.ErrConfigurationNotFound)
		}
		version := existing.Version + 1
		if err := db.Model(&configurationEntity{}).Where("id = ?", cfg.ID).Updates(map[string]interface{}{
			"remove_stamp": removeStamp(false, existing.RemoveStamp),
			"version":      version,
		}).Error; err != nil {
			return err
		}
		after.add(func() {
			cfg.Active = false
			cfg.Version = version
		})
		return nil
	})
	return dbError(op, err)
}

func (r *SQLRepository) DeleteConfiguration(ctx context.Context, cfg *model.Configuration) error {
	const op = "SQLRepository.DeleteConfiguration"
	err := r.inTx(ctx, func(ctx context.Context, db *gorm.DB, after *afterCommit) error {
		var n int64
		if err := db.Model(&configurationEntity{}).Where("id = ?", cfg.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return exception.NewTaskManagerErrorf(module, "configuration '%s'", cfg.Name, repository.ErrConfigurationNotFound)
		}

		var batchIDs []string
		if err := db.Model(&batchEntity{}).Where("configuration_id = ?", cfg.ID).Pluck("id", &batchIDs).Error; err != nil {
			return err
		}
		for _, id := range batchIDs {
			if err := deleteBatchRows(db, id); err != nil {
				return err
			}
		}

		var taskIDs []string
		if err := db.Model(&taskEntity{}).Where("configuration_id = ?", cfg.ID).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		for _, id := range taskIDs {
			// standalone batches may still reference the task
			if err := detachTask(db, id); err != nil {
				return err
			}
			if err := db.Where("task_id = ?", id).Delete(&parameterEntity{}).Error; err != nil {
				return err
			}
		}
		if err := db.Where("configuration_id = ?", cfg.ID).Delete(&taskEntity{}).Error; err != nil {
			return err
		}
		if err := db.Where("configuration_id = ?", cfg.ID).Delete(&attributeEntity{}).Error; err != nil {
			return err
		}
		return db.Where("id = ?", cfg.ID).Delete(&configurationEntity{}).Error
	})
	return dbError(op, err)
}

func (r *SQLRepository) CopyConfiguration(ctx context.Context, name string) (*model.Configuration, error) {
	src, err := r.GetConfiguration(ctx, name)
	if err != nil {
		return nil, err
	}
	return model.CloneConfiguration(src), nil
}
