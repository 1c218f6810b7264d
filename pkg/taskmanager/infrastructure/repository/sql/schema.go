package sql

import "time"

// Table rows. Soft removal is stored as a non-zero remove_stamp so that unique keys only bind
// among active rows.

type configurationEntity struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	Template    bool
	Workspace   string
	RemoveStamp int64
	Version     int
}

func (configurationEntity) TableName() string {
	return "tm_configuration"
}

type attributeEntity struct {
	ID              string `gorm:"primaryKey"`
	ConfigurationID string
	Name            string
	Value           string
}

func (attributeEntity) TableName() string {
	return "tm_attribute"
}

type taskEntity struct {
	ID              string `gorm:"primaryKey"`
	ConfigurationID string
	Name            string
	Type            string
	RemoveStamp     int64
}

func (taskEntity) TableName() string {
	return "tm_task"
}

type parameterEntity struct {
	ID     string `gorm:"primaryKey"`
	TaskID string
	Name   string
	Value  string
}

func (parameterEntity) TableName() string {
	return "tm_parameter"
}

type batchEntity struct {
	ID              string `gorm:"primaryKey"`
	ConfigurationID *string
	Name            string
	FullName        string
	Description     string
	Workspace       string
	Frequency       string
	Enabled         bool
	RemoveStamp     int64
	Version         int
}

func (batchEntity) TableName() string {
	return "tm_batch"
}

type batchElementEntity struct {
	ID      string `gorm:"primaryKey"`
	BatchID string
	TaskID  string
	Idx     *int `gorm:"column:idx"`
	Active  bool
}

func (batchElementEntity) TableName() string {
	return "tm_batch_element"
}

type batchRunEntity struct {
	ID        string `gorm:"primaryKey"`
	BatchID   string
	StartTime time.Time
	EndTime   *time.Time
	Status    string
	Message   string
}

func (batchRunEntity) TableName() string {
	return "tm_batch_run"
}

type runEntity struct {
	ID             string `gorm:"primaryKey"`
	BatchElementID string
	BatchRunID     string
	TaskID         string
	StartTime      time.Time
	EndTime        *time.Time
	Status         string
	Message        string
}

func (runEntity) TableName() string {
	return "tm_run"
}
