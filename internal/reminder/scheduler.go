package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/store"
)

// EventSource supplies the current event list.
type EventSource interface {
	Events() []model.Event
}

// Feed is the notification store the scheduler writes to. Deliver must push
// the notification and record key as fired atomically, and return
// store.ErrAlreadyFired without pushing when key was fired before.
type Feed interface {
	FiredKeys(ctx context.Context) (map[string]struct{}, error)
	Deliver(ctx context.Context, n *model.Notification, key string) error
}

// Alerter is an outward alert channel (toast, sound, push, email).
// Alert errors are logged and never undo a delivery.
type Alerter interface {
	Alert(ctx context.Context, n model.Notification) error
}

// Scheduler runs one reminder evaluation per Tick and applies the resulting
// effects. It owns the tracker state; ticks are serialized.
type Scheduler struct {
	mu       sync.Mutex
	tracker  *Tracker
	source   EventSource
	feed     Feed
	alerters []Alerter
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*schedulerConfig)

type schedulerConfig struct {
	thresholds []Threshold
	loc        *time.Location
	alerters   []Alerter
}

func WithThresholds(th []Threshold) Option {
	return func(c *schedulerConfig) { c.thresholds = th }
}

func WithLocation(loc *time.Location) Option {
	return func(c *schedulerConfig) { c.loc = loc }
}

func WithAlerters(a ...Alerter) Option {
	return func(c *schedulerConfig) { c.alerters = append(c.alerters, a...) }
}

func NewScheduler(src EventSource, feed Feed, logger *slog.Logger, opts ...Option) *Scheduler {
	var cfg schedulerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tracker:  NewTracker(cfg.thresholds, cfg.loc),
		source:   src,
		feed:     feed,
		alerters: cfg.alerters,
		logger:   logger,
	}
}

// Tick evaluates the current event list at now and returns the number of
// notifications delivered. An error means the fired ledger could not be read
// and nothing was evaluated.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fired, err := s.feed.FiredKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("load fired keys: %w", err)
	}
	isFired := func(key string) bool {
		_, ok := fired[key]
		return ok
	}

	fires := s.tracker.Step(s.source.Events(), now, isFired)
	return s.apply(ctx, fires, fired), nil
}

// apply runs the effects in order. Each fire is a unit: deliver, then alert.
func (s *Scheduler) apply(ctx context.Context, fires []Fire, fired map[string]struct{}) int {
	delivered := 0
	for _, f := range fires {
		if _, ok := fired[f.Key]; ok {
			continue
		}
		if ctx.Err() != nil {
			s.tracker.Rollback(f)
			continue
		}

		n := f.Notification()
		err := s.feed.Deliver(ctx, &n, f.Key)
		if errors.Is(err, store.ErrAlreadyFired) {
			fired[f.Key] = struct{}{}
			s.logger.Debug("reminder already fired", "key", f.Key)
			continue
		}
		if err != nil {
			s.logger.Error("deliver reminder", "key", f.Key, "error", err)
			s.tracker.Rollback(f)
			continue
		}
		fired[f.Key] = struct{}{}
		delivered++
		s.logger.Info("reminder fired", "key", f.Key, "event_id", f.EventID, "threshold", f.Threshold.Key, "remaining", f.Remaining.Round(time.Second))

		for _, a := range s.alerters {
			if err := a.Alert(ctx, n); err != nil {
				s.logger.Warn("reminder alert failed", "key", f.Key, "alerter", fmt.Sprintf("%T", a), "error", err)
			}
		}
	}
	return delivered
}

// Tracked reports the lifecycle state of an event.
func (s *Scheduler) Tracked(eventID string) TrackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.State(eventID)
}
