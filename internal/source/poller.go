package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshSpec reloads remote events once a minute.
const DefaultRefreshSpec = "@every 1m"

// Poller refreshes a source on a cron schedule. It implements cron.Job.
type Poller struct {
	source  Refresher
	spec    string
	timeout time.Duration
	logger  *slog.Logger
}

func NewPoller(src Refresher, spec string, logger *slog.Logger) *Poller {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:  src,
		spec:    spec,
		timeout: defaultTimeout,
		logger:  logger,
	}
}

// Register adds the poller to c.
func (p *Poller) Register(c *cron.Cron) (cron.EntryID, error) {
	id, err := c.AddJob(p.spec, p)
	if err != nil {
		return 0, fmt.Errorf("schedule source refresh %q: %w", p.spec, err)
	}
	return id, nil
}

// Run performs one refresh. Errors are logged; the source keeps its last
// good list.
func (p *Poller) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	p.RefreshNow(ctx)
}

// RefreshNow refreshes synchronously and reports whether it succeeded.
func (p *Poller) RefreshNow(ctx context.Context) bool {
	if err := p.source.Refresh(ctx); err != nil {
		p.logger.Warn("event source refresh failed", "error", err)
		return false
	}
	p.logger.Debug("event source refreshed")
	return true
}
