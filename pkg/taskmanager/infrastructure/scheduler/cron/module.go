package cron

import (
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// NewCronSchedulerProvider creates the scheduler in scheduler.location, falling back to
// system.timezone.
func NewCronSchedulerProvider(cfg *config.Config) (*CronScheduler, error) {
	name := cfg.TaskManager.Scheduler.Location
	if name == "" {
		name = cfg.TaskManager.System.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, exception.NewTaskManagerErrorf(module, "invalid scheduler location '%s'", name, err)
	}
	return NewCronScheduler(loc), nil
}

// Module provides *CronScheduler and binds it to schedule.Scheduler.
var Module = fx.Options(
	fx.Provide(NewCronSchedulerProvider),
	fx.Provide(func(s *CronScheduler) schedule.Scheduler { return s }),
)
