// Package source supplies the event list the reminder engine evaluates.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
)

// Refresher is a source that can reload its events from upstream.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Status describes the last refresh of a remote source.
type Status struct {
	LastRefresh time.Time `json:"last_refresh"`
	LastError   string    `json:"last_error,omitempty"`
	EventCount  int       `json:"event_count"`
}

// cache holds the last good event list. A failed refresh records the error
// and leaves the list alone.
type cache struct {
	mu      sync.RWMutex
	events  []model.Event
	fetched time.Time
	lastErr string
}

func (c *cache) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Event(nil), c.events...)
}

func (c *cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{LastRefresh: c.fetched, LastError: c.lastErr, EventCount: len(c.events)}
}

func (c *cache) store(events []model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
	c.fetched = time.Now()
	c.lastErr = ""
}

func (c *cache) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err.Error()
}

// Static is a fixed event list.
type Static []model.Event

func (s Static) Events() []model.Event {
	return append([]model.Event(nil), s...)
}
