package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
)

func testNotification() model.Notification {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.Notification{
		ID:         "n1",
		Title:      model.NotifTitleEventComing,
		Body:       "1 hour left • Hackathon",
		EventID:    "42",
		Location:   "Main hall",
		EventStart: &start,
	}
}

func TestSendReminder(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://bell.test/")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendReminder(context.Background(), "alice@example.com", testNotification()); err != nil {
		t.Fatalf("send reminder: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "1 hour left • Hackathon" {
		t.Errorf("Subject = %q, want %q", received.Subject, "1 hour left • Hackathon")
	}
	for _, want := range []string{"Event is coming", "Where: Main hall", "query=Main+hall", "https://bell.test"} {
		if !strings.Contains(received.TextBody, want) {
			t.Errorf("TextBody missing %q:\n%s", want, received.TextBody)
		}
	}
	if !strings.Contains(received.HtmlBody, "Hackathon") {
		t.Errorf("HtmlBody missing title: %s", received.HtmlBody)
	}
}

func TestSendReminderEscapesHTML(t *testing.T) {
	var received postmarkEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	n := testNotification()
	n.Body = "5 minutes left • <script>alert(1)</script>"
	if err := client.SendReminder(context.Background(), "bob@example.com", n); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if strings.Contains(received.HtmlBody, "<script>") {
		t.Errorf("HtmlBody not escaped: %s", received.HtmlBody)
	}
}

func TestSendReminderNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "")

	if err := client.SendReminder(context.Background(), "alice@example.com", testNotification()); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestSendReminderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	if err := client.SendReminder(context.Background(), "alice@example.com", testNotification()); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestConfigured(t *testing.T) {
	c1 := NewClient("token", "from@test.com", "https://test.com")
	if !c1.Configured() {
		t.Error("expected Configured() = true")
	}

	c2 := NewClient("", "from@test.com", "https://test.com")
	if c2.Configured() {
		t.Error("expected Configured() = false")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
