package supervisor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"farewatch/internal/logger"
	apperrors "farewatch/pkg/errors"
	"farewatch/pkg/logging"
	"farewatch/pkg/metrics"
)

// Task is one long-running loop. Run should return only when ctx is done.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
	// RestartDelay is how long to wait before running the task again after it
	// failed or returned early.
	RestartDelay time.Duration
}

// Supervisor runs its tasks concurrently until the context is cancelled. A
// task that errors, panics or returns early is logged and restarted; it never
// takes down the other tasks or the process.
type Supervisor struct {
	tasks  []Task
	logger logger.Logger
}

func New(log logger.Logger, tasks ...Task) *Supervisor {
	return &Supervisor{tasks: tasks, logger: log}
}

// Run blocks until ctx is cancelled and every task has stopped.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, task := range s.tasks {
		task := task
		g.Go(func() error {
			s.supervise(gCtx, task)
			return nil
		})
	}

	return g.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, task Task) {
	taskCtx := logging.WithServiceName(ctx, task.Name)

	for {
		err := s.runOnce(ctx, task)
		if ctx.Err() != nil {
			s.logger.InfowCtx(taskCtx, "Task stopped")
			return
		}

		if err != nil {
			s.logger.ErrorwCtx(taskCtx, "Task failed, restarting", "error", err, "restart_in", task.RestartDelay)
		} else {
			s.logger.WarnwCtx(taskCtx, "Task returned unexpectedly, restarting", "restart_in", task.RestartDelay)
		}
		metrics.IncTaskRestarts(task.Name)

		select {
		case <-ctx.Done():
			s.logger.InfowCtx(taskCtx, "Task stopped")
			return
		case <-time.After(task.RestartDelay):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %w", task.Name, apperrors.RecoverPanic(r))
		}
	}()
	return task.Run(ctx)
}
