package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/ports"
)

type statusSink struct {
	mu   sync.Mutex
	gens []uint64
}

func (s *statusSink) handle(ctx context.Context, gen uint64, status *ports.TimerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens = append(s.gens, gen)
}

func (s *statusSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gens)
}

func (s *statusSink) last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[len(s.gens)-1]
}

func TestStatusPoller_PollsUntilStopped(t *testing.T) {
	backend := newFakeBackend()
	sink := &statusSink{}
	p := NewStatusPoller(backend, 10*time.Millisecond, sink.handle, zap.NewNop())

	p.Start(7)
	require.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(7), sink.last())
	assert.True(t, p.Active())

	p.Stop()
	assert.False(t, p.Active())
	time.Sleep(30 * time.Millisecond)
	settled := sink.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, sink.count())
}

func TestStatusPoller_RestartReplacesLoop(t *testing.T) {
	backend := newFakeBackend()
	sink := &statusSink{}
	p := NewStatusPoller(backend, 10*time.Millisecond, sink.handle, zap.NewNop())
	defer p.Stop()

	p.Start(1)
	p.Start(2)
	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), sink.last())
}

func TestStatusPoller_SkipsErrors(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("status", errBackendDown)
	sink := &statusSink{}
	p := NewStatusPoller(backend, time.Hour, sink.handle, nil)

	p.Poll(context.Background(), 1)
	assert.Equal(t, 0, sink.count())

	backend.fail("status", nil)
	p.Poll(context.Background(), 1)
	assert.Equal(t, 1, sink.count())
}

func TestStatusPoller_CancelledContextDropsReading(t *testing.T) {
	sink := &statusSink{}
	p := NewStatusPoller(newFakeBackend(), 0, sink.handle, nil)
	assert.Equal(t, DefaultPollInterval, p.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Poll(ctx, 1)
	assert.Equal(t, 0, sink.count())
}

func TestSessionController_PollerDrivesCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithPollInterval(5*time.Millisecond))

	require.NoError(t, f.controller.Start(ctx))
	f.backend.setStatus(ports.TimerStatus{IsTiming: true, ElapsedSeconds: 60, TimeLimit: 90})
	require.Eventually(t, func() bool {
		return f.controller.Snapshot().RemainingSeconds == 5340
	}, time.Second, 5*time.Millisecond)

	f.backend.setStatus(ports.TimerStatus{ElapsedSeconds: 5400, TimeLimit: 90})
	require.Eventually(t, func() bool {
		return f.controller.Stats().TodaySessions == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return !f.controller.Snapshot().Active()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.backend.count("standard"))
	assert.False(t, f.controller.poller.Active())
}
