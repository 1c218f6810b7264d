package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

// MockTaskType is a mock of tasktype.TaskType. Capability calls are recorded with the task name as
// their only argument, so expectations read On("Execute", "t1").
type MockTaskType struct {
	mock.Mock
	TypeName string
	Info     map[string]tasktype.ParameterInfo
}

// NewMockTaskType creates a mock registered under name.
func NewMockTaskType(name string) *MockTaskType {
	return &MockTaskType{TypeName: name}
}

func (m *MockTaskType) Name() string { return m.TypeName }

func (m *MockTaskType) ParameterInfo() map[string]tasktype.ParameterInfo { return m.Info }

func (m *MockTaskType) Execute(ctx context.Context, tc *tasktype.TaskContext) error {
	return m.Called(tc.Task.Name).Error(0)
}

func (m *MockTaskType) Commit(ctx context.Context, tc *tasktype.TaskContext) error {
	return m.Called(tc.Task.Name).Error(0)
}

func (m *MockTaskType) Rollback(ctx context.Context, tc *tasktype.TaskContext) error {
	return m.Called(tc.Task.Name).Error(0)
}

// CallOrder lists the recorded calls as "Method:task", oldest first.
func (m *MockTaskType) CallOrder() []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Method+":"+c.Arguments.String(0))
	}
	return out
}

// MockCleanerTaskType is a MockTaskType that also implements tasktype.Cleaner.
type MockCleanerTaskType struct {
	*MockTaskType
}

func (m MockCleanerTaskType) Cleanup(ctx context.Context, tc *tasktype.TaskContext) error {
	return m.Called(tc.Task.Name).Error(0)
}

var (
	_ tasktype.TaskType = (*MockTaskType)(nil)
	_ tasktype.Cleaner  = MockCleanerTaskType{}
)
