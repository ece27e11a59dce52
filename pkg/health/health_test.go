package health

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

type stubConn struct{ connected bool }

func (s stubConn) Connected() bool { return s.connected }
func (s stubConn) Name() string    { return "FlightPricesQueue" }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		required error
		optional error
		want     Status
	}{
		{"all healthy", nil, nil, StatusHealthy},
		{"optional failing", nil, errors.New("down"), StatusDegraded},
		{"required failing", errors.New("down"), nil, StatusUnhealthy},
		{"both failing", errors.New("down"), errors.New("down"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			r.Register(stubChecker{name: "mongodb", err: tt.required})
			r.RegisterOptional(stubChecker{name: "broker", err: tt.optional})

			h := r.Check(context.Background())

			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, 2)
		})
	}
}

func TestBrokerChecker(t *testing.T) {
	assert.NoError(t, NewBrokerChecker(stubConn{connected: true}).Check(context.Background()))

	err := NewBrokerChecker(stubConn{}).Check(context.Background())
	assert.ErrorContains(t, err, "FlightPricesQueue")
}

func TestRedisChecker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	assert.NoError(t, checker.Check(context.Background()))

	srv.Close()
	assert.Error(t, checker.Check(context.Background()))
}
