package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"farewatch/internal/broker"
	"farewatch/internal/config"
	"farewatch/internal/logger"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger
	Queue  broker.Queue
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitQueue creates the queue client. An unreachable broker leaves the client
// degraded and is not reported as an error.
func (b *Base) InitQueue(ctx context.Context) error {
	queue, err := broker.NewQueue(ctx, b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create queue client: %w", err)
	}
	if !queue.Connected() {
		b.Logger.Warnw("Broker unavailable at startup, running degraded", "queue", queue.Name())
	}
	b.Queue = queue
	return nil
}

func (b *Base) ShutdownQueue() []error {
	if b.Queue == nil {
		return nil
	}
	if err := b.Queue.Close(); err != nil {
		return []error{fmt.Errorf("queue close error: %w", err)}
	}
	return nil
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownQueue()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
