package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farewatch/internal/broker"
	"farewatch/internal/config"
	"farewatch/internal/constants"
	"farewatch/internal/logger"
	"farewatch/pkg/cel"
	"farewatch/pkg/logging"
	"farewatch/pkg/metrics"
	"farewatch/pkg/models"
)

// CycleResult counts the outcome of one polling cycle.
type CycleResult struct {
	Sources       int
	FailedSources int
	Published     int
	PublishFailed int
	Filtered      int
}

// Collector polls every configured source on a fixed interval and publishes
// each parsed price event on its own.
type Collector struct {
	sources   []string
	interval  time.Duration
	fetcher   Fetcher
	publisher broker.Publisher
	filter    *cel.Filter
	logger    logger.Logger
}

func New(cfg config.CollectorConfig, fetcher Fetcher, publisher broker.Publisher, log logger.Logger) (*Collector, error) {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	if cfg.CircuitBreaker.Enabled {
		fetcher = NewCircuitBreakerFetcher(fetcher, cfg.CircuitBreaker)
	}

	c := &Collector{
		sources:   append([]string(nil), cfg.Sources...),
		interval:  interval,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    log,
	}

	if cfg.EventFilter != "" {
		filter, err := cel.NewFilter(cfg.EventFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid collector.event_filter: %w", err)
		}
		c.filter = filter
	}

	return c, nil
}

func (c *Collector) Interval() time.Duration {
	return c.interval
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Infow("Price collector started",
		"sources", len(c.sources),
		"poll_interval", c.interval,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.RunCycle(ctx)

		select {
		case <-ctx.Done():
			c.logger.Infow("Price collector stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle fetches every source once. A failing source is logged and skipped;
// it never affects the others.
func (c *Collector) RunCycle(ctx context.Context) CycleResult {
	result := CycleResult{Sources: len(c.sources)}

	if len(c.sources) == 0 {
		c.logger.Warnw("No flight price sources configured")
		return result
	}

	for _, url := range c.sources {
		if ctx.Err() != nil {
			return result
		}

		sourceCtx := logging.WithSourceURL(ctx, url)
		events, err := c.fetch(sourceCtx, url)
		if err != nil {
			if ctx.Err() != nil {
				return result
			}
			result.FailedSources++
			c.logger.WarnwCtx(sourceCtx, "Failed to collect prices from source", "error", err)
			continue
		}

		for _, event := range events {
			switch c.publish(sourceCtx, url, event) {
			case outcomePublished:
				result.Published++
			case outcomeFiltered:
				result.Filtered++
			case outcomeFailed:
				result.PublishFailed++
			}
		}
	}

	c.logger.Debugw("Collection cycle finished",
		"sources", result.Sources,
		"failed_sources", result.FailedSources,
		"published", result.Published,
		"publish_failed", result.PublishFailed,
		"filtered", result.Filtered,
	)

	return result
}

func (c *Collector) fetch(ctx context.Context, url string) ([]models.PriceEvent, error) {
	start := time.Now()
	events, err := c.fetcher.Fetch(ctx, url)

	status := "success"
	if err != nil {
		status = "error"
		var srcErr *SourceError
		if errors.As(err, &srcErr) && srcErr.StatusCode != 0 {
			status = fmt.Sprintf("http_%d", srcErr.StatusCode)
		}
	}
	metrics.ObserveSourceFetch(url, status, time.Since(start))

	return events, err
}

type publishOutcome int

const (
	outcomePublished publishOutcome = iota
	outcomeFiltered
	outcomeFailed
)

func (c *Collector) publish(ctx context.Context, url string, event models.PriceEvent) publishOutcome {
	ctx = logging.WithFlightID(ctx, event.FlightID)

	if c.filter != nil {
		allowed, err := c.filter.Allow(ctx, event, url)
		if err != nil {
			c.logger.ErrorwCtx(ctx, "Failed to evaluate event filter", "error", err)
		}
		if !allowed {
			metrics.IncCollectorEvents("filtered")
			return outcomeFiltered
		}
	}

	if err := c.publisher.Publish(ctx, event); err != nil {
		metrics.IncCollectorEvents("publish_failed")
		c.logger.ErrorwCtx(ctx, "Failed to publish price event",
			"error", err,
			"connection_error", errors.Is(err, broker.ErrConnection),
		)
		return outcomeFailed
	}

	metrics.IncCollectorEvents("published")
	return outcomePublished
}
