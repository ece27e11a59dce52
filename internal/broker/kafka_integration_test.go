package broker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"

	"farewatch/internal/logger"
)

func TestKafkaQueue_Integration(t *testing.T) {
	if testing.Short() || os.Getenv("FAREWATCH_INTEGRATION") != "1" {
		t.Skip("set FAREWATCH_INTEGRATION=1 to run broker integration tests")
	}

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	ctx := context.Background()
	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("farewatch-test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Brokers = brokers
	cfg.DialTimeout = 10 * time.Second

	q := NewKafkaQueue(ctx, cfg, logger.NopLogger())
	t.Cleanup(func() { _ = q.Close() })
	require.True(t, q.Connected())

	for _, id := range []string{"IT1", "IT2", "IT3"} {
		require.NoError(t, q.Publish(ctx, lisEvent(id, 120)))
	}

	depth, err := q.QueueDepth(ctx, cfg.Queue)
	require.NoError(t, err)
	assert.EqualValues(t, 3, depth)

	consumeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	seen := map[string]bool{}
	for len(seen) < 3 {
		event, err := q.Consume(consumeCtx)
		require.NoError(t, err)
		require.NotNil(t, event, "timed out waiting for events")
		seen[event.FlightID] = true
	}

	assert.Eventually(t, func() bool {
		depth, err := q.QueueDepth(ctx, cfg.Queue)
		return err == nil && depth == 0
	}, 10*time.Second, 200*time.Millisecond)
}
