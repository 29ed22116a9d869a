package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innocapforge/forge-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type funcConsumer func(ctx context.Context) error

func (f funcConsumer) Run(ctx context.Context) error { return f(ctx) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceStopsOnCancel(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: map[string]pinger{"redis": stubPinger{}},
		Consumers:    map[string]consumer{"notifications": funcConsumer(blockUntilDone)},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}

func TestServiceFailsFastOnUnavailableDependency(t *testing.T) {
	called := false
	svc, err := NewService(ServiceParams{
		Logger:       testLogger(),
		Dependencies: map[string]pinger{"pubsub": stubPinger{err: errors.New("permission denied")}},
		Consumers: map[string]consumer{"notifications": funcConsumer(func(ctx context.Context) error {
			called = true
			return nil
		})},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
	assert.False(t, called)
}

func TestServiceConsumerErrorCancelsSiblings(t *testing.T) {
	siblingStopped := make(chan struct{})
	svc, err := NewService(ServiceParams{
		Logger: testLogger(),
		Consumers: map[string]consumer{
			"broken": funcConsumer(func(ctx context.Context) error { return errors.New("subscription deleted") }),
			"healthy": funcConsumer(func(ctx context.Context) error {
				<-ctx.Done()
				close(siblingStopped)
				return ctx.Err()
			}),
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: subscription deleted")
	select {
	case <-siblingStopped:
	case <-time.After(time.Second):
		t.Fatal("sibling consumer was not cancelled")
	}
}

func TestNewServiceRequiresConsumers(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	assert.Error(t, err)
}
