package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter forwards fx container events to this package's logger.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter is passed to fx.WithLogger.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent implements fxevent.Logger. Hook traffic is DEBUG; failures are ERROR.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("OnStart hook executing: %s", trimClosureSuffix(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s, error: %v", trimClosureSuffix(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStart hook executed: %s (%s)", trimClosureSuffix(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuting:
		Debugf("OnStop hook executing: %s", trimClosureSuffix(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s, error: %v", trimClosureSuffix(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStop hook executed: %s", trimClosureSuffix(e.FunctionName))
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed for %s: %v", e.TypeName, e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide failed in %s: %v", e.ConstructorName, e.Err)
			return
		}
		for _, t := range e.OutputTypeNames {
			Debugf("Provided: %s", t)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s, error: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Infof("Received %s, stopping task manager.", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback of startup failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
			return
		}
		Infof("Task manager started.")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Custom fx logger initialization failed: %v", e.Err)
		}
	}
}

// trimClosureSuffix drops ".func1"-style suffixes fx reports for anonymous hooks.
func trimClosureSuffix(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
