package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTP reads events from a REST API serving GET {base}/events.
type HTTP struct {
	cache
	baseURL string
	client  *http.Client
}

// Option configures a remote source.
type Option func(*http.Client)

// WithHTTPClient replaces the default client. Its timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(dst *http.Client) { *dst = *c }
}

func newClient(opts []Option) *http.Client {
	c := &http.Client{Timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewHTTP(baseURL string, opts ...Option) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newClient(opts),
	}
}

// Refresh fetches the event list. On failure the previous list stays in place.
func (h *HTTP) Refresh(ctx context.Context) error {
	body, err := get(ctx, h.client, h.baseURL+"/events", "application/json")
	if err != nil {
		err = fmt.Errorf("fetch events: %w", err)
		h.fail(err)
		return err
	}

	events, err := Normalize(body)
	if err != nil {
		h.fail(err)
		return err
	}
	h.store(events)
	return nil
}
