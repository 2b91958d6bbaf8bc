package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/eventbell/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a Postmark client. baseURL is the dashboard address
// linked from reminder emails; it may be empty.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendReminder emails one reminder notification to toEmail.
func (c *Client) SendReminder(ctx context.Context, toEmail string, n model.Notification) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	var text, htm strings.Builder
	fmt.Fprintf(&text, "%s\n\n%s\n", n.Title, n.Body)
	fmt.Fprintf(&htm, "<h2>%s</h2><p>%s</p>", html.EscapeString(n.Title), html.EscapeString(n.Body))

	if n.EventStart != nil {
		when := n.EventStart.Format("Mon Jan 2, 15:04")
		fmt.Fprintf(&text, "When: %s\n", when)
		fmt.Fprintf(&htm, "<p>When: %s</p>", html.EscapeString(when))
	}
	if n.Location != "" {
		maps := "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(n.Location)
		fmt.Fprintf(&text, "Where: %s\n%s\n", n.Location, maps)
		fmt.Fprintf(&htm, `<p>Where: <a href="%s">%s</a></p>`, html.EscapeString(maps), html.EscapeString(n.Location))
	}
	if c.baseURL != "" {
		fmt.Fprintf(&text, "\nOpen the dashboard: %s\n", c.baseURL)
		fmt.Fprintf(&htm, `<p><a href="%s">Open the dashboard</a></p>`, html.EscapeString(c.baseURL))
	}

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  n.Body,
		HtmlBody: htm.String(),
		TextBody: text.String(),
		Tag:      "reminder",
	})
}

func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
