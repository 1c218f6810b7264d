package tracing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

type eventTracer struct {
	metrics.NoOpTracer
	mu     sync.Mutex
	events []string
}

func (t *eventTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, name)
}

func TestTracingRunListenerRecordsEvents(t *testing.T) {
	tracer := &eventTracer{}
	l := NewTracingRunListener(tracer)
	ctx := context.Background()
	cfg := model.NewConfiguration("cfg")
	task := cfg.AddTask("t1", "Test")
	b := cfg.AddBatch("b")
	br := &model.BatchRun{ID: "br"}

	l.BeforeFiring(ctx, b, br)
	l.OnRunTransition(ctx, port.RunEvent{Task: task, Run: &model.Run{ID: "r", Status: model.RunStatusRunning}})
	l.AfterCapability(ctx, port.CapabilityEvent{Task: task, Phase: port.PhaseExecute})
	l.AfterFiring(ctx, b, br)

	assert.Equal(t, []string{"batch_run.started", "run.transition", "batch_run.finished"}, tracer.events)
}
