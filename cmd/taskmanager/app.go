package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/mysql"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/postgres"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/sqlite"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/gcs"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/local"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/tasktype/copytable"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/tasktype/filepublication"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/tasktype/runexport"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/tasktype/testtask"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/engine"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/metrics"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/scheduler/cron"
	logginglistener "github.com/tigerroll/taskmanager/pkg/taskmanager/listener/logging"
	metricslistener "github.com/tigerroll/taskmanager/pkg/taskmanager/listener/metrics"
	tracinglistener "github.com/tigerroll/taskmanager/pkg/taskmanager/listener/tracing"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// NewApp assembles the fx application.
func NewApp(envFilePath string, embedded config.EmbeddedConfig, extra ...fx.Option) *fx.App {
	return fx.New(
		fx.Supply(
			embedded,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		logger.Module,
		config.Module,

		sqlite.Module,
		postgres.Module,
		mysql.Module,
		gormadapter.Module,
		local.Module,
		gcs.Module,
		storage.Module,
		repository.Module,

		testtask.Module,
		copytable.Module,
		filepublication.Module,
		runexport.Module,
		tasktype.Module,

		metrics.Module,
		logginglistener.Module,
		metricslistener.Module,
		tracinglistener.Module,
		engine.Module,

		cron.Module,
		schedule.Module,

		fx.Invoke(registerLifecycle),
		fx.Options(extra...),
	)
}

// RunApplication starts the application and blocks until ctx is cancelled.
func RunApplication(ctx context.Context, envFilePath string, embedded config.EmbeddedConfig) error {
	app := NewApp(envFilePath, embedded)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	return app.Stop(stopCtx)
}

type lifecycleParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Resolver  database.DBConnectionResolver
	Engine    *engine.Engine
	Jobs      *schedule.BatchJobService
	Scheduler schedule.Scheduler
}

// registerLifecycle migrates the schema, recovers interrupted batch runs, loads every batch into
// the scheduler and starts it. Stopping waits for running firings.
func registerLifecycle(p lifecycleParams) {
	tm := p.Cfg.TaskManager
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repository.Migrate(ctx, p.Cfg, p.Resolver); err != nil {
				return err
			}
			if tm.Scheduler.ResumeOnStart {
				if err := p.Engine.ResumeAll(ctx); err != nil {
					logger.Errorf("Failed to resume interrupted batch runs: %v", err)
				}
			}
			if !tm.Scheduler.Enabled {
				logger.Infof("Scheduler disabled; batches only run when fired explicitly.")
				return nil
			}
			if err := p.Jobs.ReloadAll(ctx); err != nil {
				logger.Warnf("Some batches could not be scheduled: %v", err)
			}
			p.Scheduler.Start()
			logger.Infof("Scheduler started.")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if !tm.Scheduler.Enabled {
				return nil
			}
			logger.Infof("Stopping scheduler...")
			return p.Scheduler.Stop(ctx)
		},
	})
}
