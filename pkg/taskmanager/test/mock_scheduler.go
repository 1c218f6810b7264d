package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
)

// MockScheduler is a mock of schedule.Scheduler.
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) CheckExists(key string) bool {
	return m.Called(key).Bool(0)
}

func (m *MockScheduler) AddJob(key string, job schedule.JobFunc) error {
	return m.Called(key, job).Error(0)
}

func (m *MockScheduler) DeleteJob(key string) error {
	return m.Called(key).Error(0)
}

func (m *MockScheduler) UnscheduleTrigger(key string) error {
	return m.Called(key).Error(0)
}

func (m *MockScheduler) ScheduleTrigger(key, cronExpr string) error {
	return m.Called(key, cronExpr).Error(0)
}

func (m *MockScheduler) HasTrigger(key string) bool {
	return m.Called(key).Bool(0)
}

func (m *MockScheduler) TriggerNow(key string) error {
	return m.Called(key).Error(0)
}

func (m *MockScheduler) Clear() {
	m.Called()
}

func (m *MockScheduler) Start() {
	m.Called()
}

func (m *MockScheduler) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ schedule.Scheduler = (*MockScheduler)(nil)
