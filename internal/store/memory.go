package store

import (
	"context"
	"sync"

	"github.com/dukerupert/eventbell/internal/model"
)

// MemoryFeed is the non-persisted feed. Its fired set lives only as long as
// the process, so reminders may repeat after a restart.
type MemoryFeed struct {
	mu    sync.RWMutex
	items []model.Notification
	fired map[string]struct{}
	cap   int
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		fired: make(map[string]struct{}),
		cap:   model.FeedCap,
	}
}

func (f *MemoryFeed) push(n *model.Notification) {
	prepare(n)
	f.items = append([]model.Notification{*n}, f.items...)
	if len(f.items) > f.cap {
		f.items = f.items[:f.cap]
	}
}

func (f *MemoryFeed) Push(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push(n)
	return nil
}

func (f *MemoryFeed) MarkFired(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired[key] = struct{}{}
	return nil
}

func (f *MemoryFeed) Deliver(_ context.Context, n *model.Notification, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.fired[key]; ok {
		return ErrAlreadyFired
	}
	f.fired[key] = struct{}{}
	f.push(n)
	return nil
}

func (f *MemoryFeed) IsFired(_ context.Context, key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.fired[key]
	return ok, nil
}

// FiredKeys returns a copy of the fired set.
func (f *MemoryFeed) FiredKeys(_ context.Context) (map[string]struct{}, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make(map[string]struct{}, len(f.fired))
	for k := range f.fired {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (f *MemoryFeed) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			break
		}
	}
	return nil
}

func (f *MemoryFeed) MarkAllRead(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
	return nil
}

func (f *MemoryFeed) ClearAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}

// List returns a copy of the feed, newest first.
func (f *MemoryFeed) List(_ context.Context) ([]model.Notification, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Notification(nil), f.items...), nil
}

func (f *MemoryFeed) UnreadCount(_ context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	count := 0
	for _, n := range f.items {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
