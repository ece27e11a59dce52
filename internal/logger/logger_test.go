package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"farewatch/pkg/logging"
)

func TestSugaredLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetServiceName("farewatch")

	ctx := logging.WithFlightID(context.Background(), "LH400")
	ctx = logging.WithSourceURL(ctx, "http://prices.example")
	l.WarnwCtx(ctx, "source failed", "status", 500)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "LH400", fields["flight_id"])
	assert.Equal(t, "http://prices.example", fields["source_url"])
	assert.Equal(t, "farewatch", fields["service_name"])
	assert.EqualValues(t, 500, fields["status"])
}

func TestNewWithFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewWithFormat("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
