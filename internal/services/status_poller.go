package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xvierd/focus-cli/internal/ports"
)

// DefaultPollInterval is how often the backend timer is read while a
// session runs.
const DefaultPollInterval = time.Second

// StatusHandler receives a timer reading tagged with the generation it was
// requested for.
type StatusHandler func(ctx context.Context, generation uint64, status *ports.TimerStatus)

// StatusPoller reads the backend timer on a fixed interval while a session
// is active. At most one polling goroutine runs at a time.
type StatusPoller struct {
	backend  ports.ModesBackend
	interval time.Duration
	handle   StatusHandler
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStatusPoller creates a poller that hands each reading to handle.
func NewStatusPoller(backend ports.ModesBackend, interval time.Duration, handle StatusHandler, logger *zap.Logger) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusPoller{
		backend:  backend,
		interval: interval,
		handle:   handle,
		logger:   logger,
	}
}

// Start begins polling for generation, replacing any previous loop.
func (p *StatusPoller) Start(generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx, generation)
}

// Stop cancels the polling loop. It does not wait for an in-flight request;
// the generation tag lets the receiver discard a late answer.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Active reports whether a polling loop is running.
func (p *StatusPoller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *StatusPoller) loop(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx, generation)
		}
	}
}

// Poll performs a single read and forwards it. Fetch errors are skipped.
func (p *StatusPoller) Poll(ctx context.Context, generation uint64) {
	status, err := p.backend.TimerStatus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Debug("timer status poll failed", zap.Uint64("generation", generation), zap.Error(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.handle(ctx, generation, status)
}
