package listview

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the real-time refresh period.
const DefaultPollInterval = 30 * time.Second

// TickSource returns a tick channel and a function that stops it.
type TickSource func(d time.Duration) (<-chan time.Time, func())

func tickerSource(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Poller calls a refresh function on a fixed interval while started. A tick
// that arrives while the previous refresh is still running is skipped.
type Poller struct {
	name     string
	interval time.Duration
	refresh  func(ctx context.Context) error
	ticks    TickSource
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	busy    atomic.Bool
	fired   atomic.Int64
	skipped atomic.Int64
}

// NewPoller creates a stopped poller. A zero interval means
// DefaultPollInterval.
func NewPoller(name string, interval time.Duration, refresh func(ctx context.Context) error, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		name:     name,
		interval: interval,
		refresh:  refresh,
		ticks:    tickerSource,
		logger:   logger.With("poller", name),
	}
}

// SetTickSource overrides the ticker (for testing). It has no effect on a
// running poller.
func (p *Poller) SetTickSource(ts TickSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = ts
}

// Interval returns the refresh period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start begins polling until Stop is called or ctx is cancelled. It does not
// refresh immediately. Start on a running poller is a no-op and returns false.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		select {
		case <-p.done:
			p.cancel()
		default:
			return false
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	ch, stop := p.ticks(p.interval)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, ch, stop, done)
	p.logger.Info("real-time refresh started", "interval", p.interval)
	return true
}

// Stop halts polling and waits for the loop and any in-flight refresh to
// finish. Stop on a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("real-time refresh stopped")
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Fired returns how many ticks started a refresh.
func (p *Poller) Fired() int64 { return p.fired.Load() }

// Skipped returns how many ticks were dropped because a refresh was running.
func (p *Poller) Skipped() int64 { return p.skipped.Load() }

func (p *Poller) run(ctx context.Context, ticks <-chan time.Time, stop func(), done chan struct{}) {
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if !p.busy.CompareAndSwap(false, true) {
				p.skipped.Add(1)
				p.logger.Debug("skipping tick, refresh still running")
				continue
			}
			p.fired.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer p.busy.Store(false)
				if err := p.refresh(ctx); err != nil && ctx.Err() == nil {
					p.logger.Warn("real-time refresh failed", "error", err)
				}
			}()
		}
	}
}
