package supervisor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"farewatch/internal/broker"
	"farewatch/internal/collector"
	"farewatch/internal/config"
	"farewatch/internal/logger"
	"farewatch/internal/matcher"
	"farewatch/internal/supervisor"
	"farewatch/pkg/models"
)

type noUsers struct{}

func (noUsers) GetAllUsers(context.Context) ([]models.User, error) { return nil, nil }

type noDispatch struct{}

func (noDispatch) Dispatch(context.Context, models.User, models.PriceEvent) error { return nil }

func TestPipeline_KeepsRunningWithoutBroker(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"flightId":"TP1","airline":"TAP","origin":"JFK","destination":"LIS","departureDate":"2024-07-01T00:00:00Z","price":99,"currency":"EUR"}]`))
	}))
	t.Cleanup(source.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))

	queue := broker.NewKafkaQueue(context.Background(), config.KafkaConfig{
		Brokers:     []string{"127.0.0.1:1"},
		Queue:       "FlightPricesQueue",
		GroupID:     "pipeline-test",
		Partitions:  1,
		DialTimeout: 200 * time.Millisecond,
		Reconnect: config.ReconnectConfig{
			InitialInterval: time.Minute,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		},
	}, log)
	t.Cleanup(func() { _ = queue.Close() })
	require.False(t, queue.Connected())

	c, err := collector.New(config.CollectorConfig{
		Sources:      []string{source.URL},
		PollInterval: 20 * time.Millisecond,
	}, collector.NewHTTPFetcher(time.Second), queue, log)
	require.NoError(t, err)

	m := matcher.NewService(queue, noUsers{}, noDispatch{}, matcher.Options{}, time.Millisecond, log)

	s := supervisor.New(log,
		supervisor.Task{Name: "collector", Run: c.Run, RestartDelay: c.Interval()},
		supervisor.Task{Name: "matcher", Run: m.Run, RestartDelay: m.IdleDelay()},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to publish price event").Len() >= 2 &&
			logs.FilterMessage("Queue unavailable, matcher idle").Len() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}

	assert.Zero(t, logs.FilterMessage("Task failed, restarting").Len())
}
