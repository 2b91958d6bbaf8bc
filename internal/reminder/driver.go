package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is the evaluation cadence used when none is configured.
const DefaultPollInterval = 10 * time.Second

// Ticker is anything the Driver can run on each interval.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (int, error)
}

// Driver calls a Ticker once on Start and then on every interval until
// Stop. Ticks run on a single goroutine and never overlap.
type Driver struct {
	mu       sync.RWMutex
	ticker   Ticker
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewDriver(t Ticker, interval time.Duration, logger *slog.Logger) *Driver {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		ticker:   t,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Start begins the polling loop. Calling Start on a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)

		d.runTick(ctx)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.runTick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for any in-flight tick to finish. No tick
// starts after Stop returns.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.done = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (d *Driver) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("reminder tick panicked", "panic", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	n, err := d.ticker.Tick(ctx, d.now())
	if err != nil {
		d.logger.Error("reminder tick", "error", err)
		return
	}
	if n > 0 {
		d.logger.Debug("reminder tick", "delivered", n)
	}
}
