package broker

import (
	"context"

	"farewatch/pkg/models"
)

type Publisher interface {
	Publish(ctx context.Context, event models.PriceEvent) error
}

// Consumer returns one event per call. A nil event with a nil error means ctx
// was cancelled.
type Consumer interface {
	Consume(ctx context.Context) (*models.PriceEvent, error)
}

// Inspector reports the number of messages waiting in a queue without
// changing its state.
type Inspector interface {
	QueueDepth(ctx context.Context, name string) (uint64, error)
}

// Queue is safe for one goroutine publishing while another consumes.
type Queue interface {
	Publisher
	Consumer
	Inspector
	Name() string
	Connected() bool
	Close() error
}
