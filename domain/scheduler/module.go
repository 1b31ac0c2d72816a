package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// RunTaskName is the name of the periodic check run.
const RunTaskName = "qa_run"

// Module provides the scheduler and registers the periodic check run.
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// Executor runs the check suite once.
type Executor interface {
	Execute(ctx context.Context) (*checks.Run, error)
}

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In

	Scheduler *Scheduler
	Service   *checks.Service
	Config    *config.Config
	Log       *slog.Logger
}

// RegisterTasks registers the check run when scheduling is enabled.
func RegisterTasks(p TaskParams) error {
	if !p.Config.Scheduler.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration", logger.Scope("scheduler"))
		return nil
	}
	return p.Scheduler.AddCronTask(RunTaskName, p.Config.Scheduler.RunCron, RunTask(p.Service, p.Log))
}

// RunTask adapts an Executor to a TaskFunc that logs the run outcome.
func RunTask(exec Executor, log *slog.Logger) TaskFunc {
	log = log.With(logger.Scope("scheduler"))
	return func(ctx context.Context) error {
		run, err := exec.Execute(ctx)
		if err != nil {
			return err
		}
		log.Info("scheduled run finished",
			slog.String("run_id", run.ID.String()),
			slog.Int("anomalies", run.Anomalies()),
			slog.Any("failed", run.Failed()))
		return nil
	}
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: scheduler.Start,
		OnStop:  scheduler.Stop,
	})
}
