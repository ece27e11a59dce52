package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"farewatch/internal/broker"
	"farewatch/internal/config"
	"farewatch/internal/logger"
	"farewatch/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PriceEvent
	failOn map[string]error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.PriceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOn[event.FlightID]; ok {
		return err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []models.PriceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PriceEvent(nil), p.events...)
}

func observedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func priceList(ids ...string) string {
	body := "["
	for i, id := range ids {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"flightId":%q,"airline":"TAP","origin":"JFK","destination":"LIS","departureDate":"2024-07-01T00:00:00Z","price":%d,"currency":"EUR"}`, id, 100+i)
	}
	return body + "]"
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCollector(t *testing.T, sources []string, pub broker.Publisher, log logger.Logger) *Collector {
	t.Helper()
	c, err := New(config.CollectorConfig{
		Sources:        sources,
		PollInterval:   time.Hour,
		RequestTimeout: time.Second,
	}, NewHTTPFetcher(time.Second), pub, log)
	require.NoError(t, err)
	return c
}

func warnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.FilterLevelExact(zapcore.WarnLevel).All()
}

func TestRunCycle_OneFailingSourceOneHealthy(t *testing.T) {
	failing := jsonServer(t, http.StatusInternalServerError, `{"error":"boom"}`)
	healthy := jsonServer(t, http.StatusOK, priceList("A1", "A2", "A3"))

	pub := &recordingPublisher{}
	log, logs := observedLogger()
	c := newCollector(t, []string{failing.URL, healthy.URL}, pub, log)

	result := c.RunCycle(context.Background())

	assert.Len(t, pub.published(), 3)
	assert.Equal(t, CycleResult{Sources: 2, FailedSources: 1, Published: 3}, result)

	warns := warnings(logs)
	require.Len(t, warns, 1)
	assert.Equal(t, failing.URL, warns[0].ContextMap()["source_url"])
}

func TestRunCycle_MalformedBodyIsSourceFailure(t *testing.T) {
	bad := jsonServer(t, http.StatusOK, `{"not":"a list"}`)
	good := jsonServer(t, http.StatusOK, priceList("B1"))

	pub := &recordingPublisher{}
	log, logs := observedLogger()
	c := newCollector(t, []string{bad.URL, good.URL}, pub, log)

	result := c.RunCycle(context.Background())

	assert.Equal(t, 1, result.FailedSources)
	assert.Equal(t, 1, result.Published)
	assert.Len(t, warnings(logs), 1)
}

func TestRunCycle_EmptySources(t *testing.T) {
	pub := &recordingPublisher{}
	log, logs := observedLogger()
	c := newCollector(t, nil, pub, log)

	result := c.RunCycle(context.Background())

	assert.Equal(t, CycleResult{}, result)
	assert.Empty(t, pub.published())
	warns := warnings(logs)
	require.Len(t, warns, 1)
	assert.Equal(t, "No flight price sources configured", warns[0].Message)
}

func TestRunCycle_PublishFailureDoesNotAbortCycle(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, priceList("C1", "C2", "C3"))
	pub := &recordingPublisher{failOn: map[string]error{
		"C2": &broker.PublishError{Queue: "q", Err: broker.ErrConnection},
	}}
	log, logs := observedLogger()
	c := newCollector(t, []string{srv.URL}, pub, log)

	result := c.RunCycle(context.Background())

	assert.Equal(t, 2, result.Published)
	assert.Equal(t, 1, result.PublishFailed)
	published := pub.published()
	require.Len(t, published, 2)
	assert.Equal(t, "C1", published[0].FlightID)
	assert.Equal(t, "C3", published[1].FlightID)
	assert.Equal(t, 1, logs.FilterMessage("Failed to publish price event").Len())
}

func TestRunCycle_EventFilter(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, priceList("D1", "D2", "D3"))
	pub := &recordingPublisher{}

	c, err := New(config.CollectorConfig{
		Sources:      []string{srv.URL},
		PollInterval: time.Hour,
		EventFilter:  `price < 102.0`,
	}, NewHTTPFetcher(time.Second), pub, logger.NopLogger())
	require.NoError(t, err)

	result := c.RunCycle(context.Background())

	assert.Equal(t, 2, result.Published)
	assert.Equal(t, 1, result.Filtered)
}

func TestNew_InvalidEventFilter(t *testing.T) {
	_, err := New(config.CollectorConfig{EventFilter: `price +`}, NewHTTPFetcher(0), &recordingPublisher{}, logger.NopLogger())
	assert.Error(t, err)
}

func TestRun_CancelAbandonsInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		slow.Close()
	})

	c, err := New(config.CollectorConfig{
		Sources:      []string{slow.URL},
		PollInterval: 10 * time.Millisecond,
	}, NewHTTPFetcher(time.Minute), &recordingPublisher{}, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after cancellation")
	}
}

func TestRun_PollsOnInterval(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(priceList("E1")))
	}))
	t.Cleanup(srv.Close)

	pub := &recordingPublisher{}
	c, err := New(config.CollectorConfig{
		Sources:      []string{srv.URL},
		PollInterval: 20 * time.Millisecond,
	}, NewHTTPFetcher(time.Second), pub, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	assert.Eventually(t, func() bool { return hits.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, len(pub.published()), 3)
}

type failingFetcher struct {
	calls atomic.Int32
}

func (f *failingFetcher) Fetch(_ context.Context, url string) ([]models.PriceEvent, error) {
	f.calls.Add(1)
	return nil, &SourceError{URL: url, StatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}
}

func TestCircuitBreakerFetcher_SkipsOpenSource(t *testing.T) {
	inner := &failingFetcher{}
	f := NewCircuitBreakerFetcher(inner, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "http://down.example")
		require.Error(t, err)
	}

	_, err := f.Fetch(context.Background(), "http://down.example")
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.EqualValues(t, 2, inner.calls.Load())

	// Other sources have their own breaker.
	_, err = f.Fetch(context.Background(), "http://other.example")
	require.Error(t, err)
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	srv := jsonServer(t, http.StatusServiceUnavailable, ``)

	_, err := NewHTTPFetcher(time.Second).Fetch(context.Background(), srv.URL)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, http.StatusServiceUnavailable, srcErr.StatusCode)
	assert.Equal(t, srv.URL, srcErr.URL)
}

type cancellingFetcher struct {
	calls atomic.Int32
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) ([]models.PriceEvent, error) {
	f.calls.Add(1)
	<-ctx.Done()
	return nil, &SourceError{URL: url, Err: ctx.Err()}
}

func TestCircuitBreakerFetcher_CancellationDoesNotOpenBreaker(t *testing.T) {
	inner := &cancellingFetcher{}
	f := NewCircuitBreakerFetcher(inner, config.CircuitBreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := f.Fetch(ctx, "http://slow.example")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotContains(t, err.Error(), "circuit breaker is open")
	}

	assert.EqualValues(t, 3, inner.calls.Load())
	assert.False(t, f.breaker("http://slow.example").IsOpen())
}
