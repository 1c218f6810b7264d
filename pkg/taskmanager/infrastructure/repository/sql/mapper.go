package sql

import (
	"time"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

// removeStamp keeps an existing stamp so repeated saves of a removed row do not move it.
func removeStamp(active bool, current int64) int64 {
	if active {
		return 0
	}
	if current != 0 {
		return current
	}
	return time.Now().UnixNano()
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toDomainConfiguration(e *configurationEntity) *model.Configuration {
	return &model.Configuration{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Template:    e.Template,
		Workspace:   e.Workspace,
		Active:      e.RemoveStamp == 0,
		Version:     e.Version,
		Attributes:  make(map[string]*model.Attribute),
		Tasks:       make(map[string]*model.Task),
		Batches:     make(map[string]*model.Batch),
	}
}

func fromDomainAttribute(a *model.Attribute) *attributeEntity {
	return &attributeEntity{ID: a.ID, ConfigurationID: a.ConfigurationID, Name: a.Name, Value: a.Value}
}

func toDomainAttribute(e *attributeEntity) *model.Attribute {
	return &model.Attribute{ID: e.ID, ConfigurationID: e.ConfigurationID, Name: e.Name, Value: e.Value}
}

func toDomainTask(e *taskEntity) *model.Task {
	return &model.Task{
		ID:              e.ID,
		ConfigurationID: e.ConfigurationID,
		Name:            e.Name,
		Type:            e.Type,
		Parameters:      make(map[string]*model.Parameter),
		Active:          e.RemoveStamp == 0,
	}
}

func fromDomainParameter(p *model.Parameter) *parameterEntity {
	return &parameterEntity{ID: p.ID, TaskID: p.TaskID, Name: p.Name, Value: p.Value}
}

func toDomainParameter(e *parameterEntity) *model.Parameter {
	return &model.Parameter{ID: e.ID, TaskID: e.TaskID, Name: e.Name, Value: e.Value}
}

func toDomainBatch(e *batchEntity, configurationName string) *model.Batch {
	b := &model.Batch{
		ID:                e.ID,
		ConfigurationName: configurationName,
		Name:              e.Name,
		Description:       e.Description,
		Workspace:         e.Workspace,
		Frequency:         e.Frequency,
		Enabled:           e.Enabled,
		Active:            e.RemoveStamp == 0,
		Version:           e.Version,
	}
	if e.ConfigurationID != nil {
		id := *e.ConfigurationID
		b.ConfigurationID = &id
	}
	return b
}

func fromDomainBatchElement(el *model.BatchElement) *batchElementEntity {
	e := &batchElementEntity{ID: el.ID, BatchID: el.BatchID, TaskID: el.TaskID, Active: el.Active}
	if el.Index != nil {
		idx := *el.Index
		e.Idx = &idx
	}
	return e
}

func toDomainBatchElement(e *batchElementEntity, taskName string) *model.BatchElement {
	el := &model.BatchElement{ID: e.ID, BatchID: e.BatchID, TaskID: e.TaskID, TaskName: taskName, Active: e.Active}
	if e.Idx != nil {
		idx := *e.Idx
		el.Index = &idx
	}
	return el
}

func fromDomainRun(r *model.Run) *runEntity {
	return &runEntity{
		ID:             r.ID,
		BatchElementID: r.BatchElementID,
		BatchRunID:     r.BatchRunID,
		TaskID:         r.TaskID,
		StartTime:      utc(r.Start),
		EndTime:        utcPtr(r.End),
		Status:         string(r.Status),
		Message:        r.Message,
	}
}

func toDomainRun(e *runEntity) *model.Run {
	return &model.Run{
		ID:             e.ID,
		BatchElementID: e.BatchElementID,
		BatchRunID:     e.BatchRunID,
		TaskID:         e.TaskID,
		Start:          e.StartTime,
		End:            e.EndTime,
		Status:         model.RunStatus(e.Status),
		Message:        e.Message,
	}
}

func fromDomainBatchRun(br *model.BatchRun) *batchRunEntity {
	return &batchRunEntity{
		ID:        br.ID,
		BatchID:   br.BatchID,
		StartTime: utc(br.Start),
		EndTime:   utcPtr(br.End),
		Status:    string(br.Status),
		Message:   br.Message,
	}
}

func toDomainBatchRun(e *batchRunEntity) *model.BatchRun {
	return &model.BatchRun{
		ID:      e.ID,
		BatchID: e.BatchID,
		Start:   e.StartTime,
		End:     e.EndTime,
		Status:  model.RunStatus(e.Status),
		Message: e.Message,
	}
}
