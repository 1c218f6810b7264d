// Package logging provides a run listener that writes the firing lifecycle to the package logger.
package logging

import (
	"context"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	logger "github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

type LoggingRunListener struct{}

func NewLoggingRunListener() port.RunListener {
	return &LoggingRunListener{}
}

func (l *LoggingRunListener) BeforeFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
	logger.Debugf("RunListener: BeforeFiring - Batch: %s, BatchRun: %s, Elements: %d", batch.FullName(), batchRun.ID, len(batch.ActiveElements()))
}

func (l *LoggingRunListener) OnRunTransition(ctx context.Context, event port.RunEvent) {
	if event.From == "" {
		logger.Debugf("RunListener: Run %s of task '%s' created in %s", event.Run.ID, event.Task.Name, event.Run.Status)
		return
	}
	logger.Debugf("RunListener: Run %s of task '%s' %s -> %s", event.Run.ID, event.Task.Name, event.From, event.Run.Status)
}

func (l *LoggingRunListener) AfterCapability(ctx context.Context, event port.CapabilityEvent) {
	if event.Err != nil {
		logger.Warnf("RunListener: %s of task '%s' failed after %s: %v", event.Phase, event.Task.Name, event.Duration, event.Err)
		return
	}
	logger.Debugf("RunListener: %s of task '%s' took %s", event.Phase, event.Task.Name, event.Duration)
}

func (l *LoggingRunListener) AfterFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
	logger.Infof("RunListener: AfterFiring - Batch: %s, BatchRun: %s, Status: %s, Runs: %d", batch.FullName(), batchRun.ID, batchRun.Status, len(batchRun.Runs))
}

var _ port.RunListener = (*LoggingRunListener)(nil)
