package publish

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/mapty/internal/events"
)

func TestDispatcherPublishDoesNotWaitForDelivery(t *testing.T) {
	target := newGatedPublisher()
	dispatcher := NewDispatcher(target, 4, WithDispatcherLogger(log.New(testLogWriter{t}, "", 0)))

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)

	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Publish(context.Background(), events.Envelope{Type: events.TypeWorkoutDeleted, Key: "w-1"})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on the target")
	}

	close(target.gate)
	require.Eventually(t, func() bool { return len(target.keys()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	dispatcher.Wait()
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	dispatcher := NewDispatcher(newGatedPublisher(), 1)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Envelope{Type: events.TypeWorkoutCreated, Key: "a"}))
	err := dispatcher.Publish(context.Background(), events.Envelope{Type: events.TypeWorkoutCreated, Key: "b"})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcherFlushesQueueOnShutdown(t *testing.T) {
	target := newGatedPublisher()
	close(target.gate)
	dispatcher := NewDispatcher(target, 8)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Envelope{Type: events.TypeWorkoutUpdated, Key: key}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Start(ctx)
	dispatcher.Wait()

	require.ElementsMatch(t, []string{"a", "b", "c"}, target.keys())
}

func TestDispatcherLogsTargetErrors(t *testing.T) {
	target := newGatedPublisher()
	target.err = errors.New("broker down")
	close(target.gate)
	dispatcher := NewDispatcher(target, 2, WithDispatcherLogger(log.New(testLogWriter{t}, "", 0)))

	require.NoError(t, dispatcher.Publish(context.Background(), events.Envelope{Type: events.TypeWorkoutDeleted, Key: "w-2"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Start(ctx)

	require.Equal(t, []string{"w-2"}, target.keys())
}

type gatedPublisher struct {
	gate chan struct{}
	err  error

	mu        sync.Mutex
	delivered []string
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{gate: make(chan struct{})}
}

func (p *gatedPublisher) Publish(ctx context.Context, event events.Envelope) error {
	select {
	case <-p.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, event.Key)
	return p.err
}

func (p *gatedPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.delivered...)
}

type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
