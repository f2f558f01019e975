package cachebus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyBus struct {
	Noop
	failures int32
	calls    atomic.Int32
}

func (f *flakyBus) Subscribe(context.Context, Handler) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestListenerRetriesUntilSubscribed(t *testing.T) {
	bus := &flakyBus{failures: 2}
	l := NewListener(bus, func(context.Context, Message) {}, nil, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not subscribe")
	}
	assert.Equal(t, int32(3), bus.calls.Load())
}

func TestListenerStopsOnCancel(t *testing.T) {
	bus := &flakyBus{failures: 1 << 20}
	l := NewListener(bus, func(context.Context, Message) {}, nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener ignored cancellation")
	}
}
