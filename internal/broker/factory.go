package broker

import (
	"context"
	"fmt"

	"farewatch/internal/config"
	"farewatch/internal/logger"
)

// NewQueue builds the queue client for cfg.Type. An unreachable broker is not
// an error here; the returned queue starts degraded.
func NewQueue(ctx context.Context, cfg config.BrokerConfig, log logger.Logger) (Queue, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaQueue(ctx, cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
