package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"

	"farewatch/internal/config"
	"farewatch/pkg/circuitbreaker"
	"farewatch/pkg/models"
)

// CircuitBreakerFetcher keeps one breaker per source URL so a source that
// keeps failing is skipped until its breaker half-opens.
type CircuitBreakerFetcher struct {
	fetcher  Fetcher
	settings config.CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.Wrapper
}

func NewCircuitBreakerFetcher(fetcher Fetcher, settings config.CircuitBreakerConfig) *CircuitBreakerFetcher {
	return &CircuitBreakerFetcher{
		fetcher:  fetcher,
		settings: settings,
		breakers: make(map[string]*circuitbreaker.Wrapper),
	}
}

func (f *CircuitBreakerFetcher) breaker(url string) *circuitbreaker.Wrapper {
	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[url]
	if !ok {
		cb = circuitbreaker.NewWrapper(circuitbreaker.FromSettings("source:"+url, f.settings))
		f.breakers[url] = cb
	}
	return cb
}

func (f *CircuitBreakerFetcher) Fetch(ctx context.Context, url string) ([]models.PriceEvent, error) {
	cb := f.breaker(url)

	result, err := cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return f.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &SourceError{URL: url, Err: fmt.Errorf("circuit breaker is open: %w", err)}
		}
		return nil, err
	}

	events, ok := result.([]models.PriceEvent)
	if !ok {
		return nil, &SourceError{URL: url, Err: fmt.Errorf("fetcher returned invalid result type %T", result)}
	}

	return events, nil
}
