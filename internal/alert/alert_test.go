package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/eventbell/internal/database"
	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/push"
	"github.com/dukerupert/eventbell/internal/reminder"
	"github.com/dukerupert/eventbell/internal/store"
	"github.com/dukerupert/eventbell/internal/websocket"
)

var (
	_ reminder.Alerter = (*Toast)(nil)
	_ reminder.Alerter = (*Sound)(nil)
	_ reminder.Alerter = (*WebPush)(nil)
	_ reminder.Alerter = (*Email)(nil)
)

type recordingHub struct {
	msgs []websocket.Message
}

func (h *recordingHub) Broadcast(msg websocket.Message) {
	h.msgs = append(h.msgs, msg)
}

func sample() model.Notification {
	return model.Notification{
		ID:       "n1",
		Title:    model.NotifTitleEventComing,
		Body:     "1 hour left • Hackathon",
		EventID:  "42",
		Location: "Main hall",
		FireKey:  "42_1h",
	}
}

func TestToastAndSound(t *testing.T) {
	hub := &recordingHub{}
	ctx := context.Background()

	if err := NewToast(hub).Alert(ctx, sample()); err != nil {
		t.Fatalf("toast: %v", err)
	}
	if err := NewSound(hub).Alert(ctx, sample()); err != nil {
		t.Fatalf("sound: %v", err)
	}

	if len(hub.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(hub.msgs))
	}
	if hub.msgs[0].Type != "notification_created" || hub.msgs[0].ID != "n1" {
		t.Errorf("toast = %+v", hub.msgs[0])
	}
	if hub.msgs[1].Type != "sound_play" {
		t.Errorf("sound = %+v", hub.msgs[1])
	}
}

type fakeSender struct {
	expired map[string]bool
	failing map[string]bool
	sent    []string
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, _ push.Payload) error {
	if f.expired[sub.Endpoint] {
		return push.ErrExpired
	}
	if f.failing[sub.Endpoint] {
		return errors.New("push service returned 500")
	}
	f.sent = append(f.sent, sub.Endpoint)
	return nil
}

func testPushStore(t *testing.T) *store.PushStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewPushStore(db)
}

func TestWebPushPrunesExpired(t *testing.T) {
	ctx := context.Background()
	subs := testPushStore(t)
	for _, ep := range []string{"https://push/a", "https://push/b", "https://push/c"} {
		if _, err := subs.CreateSubscription(ctx, ep, "p256", "auth", "device"); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}

	sender := &fakeSender{
		expired: map[string]bool{"https://push/b": true},
		failing: map[string]bool{"https://push/c": true},
	}
	wp := NewWebPush(sender, subs, nil)

	sent, err := wp.SendAll(ctx, PayloadFor(sample()))
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if err == nil {
		t.Error("expected error for failing subscription")
	}

	remaining, _ := subs.List(ctx)
	if len(remaining) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(remaining))
	}
	for _, s := range remaining {
		if s.Endpoint == "https://push/b" {
			t.Error("expired subscription was not deleted")
		}
	}
}

func TestPayloadFor(t *testing.T) {
	p := PayloadFor(sample())
	if p.Tag != "42_1h" {
		t.Errorf("tag = %q, want %q", p.Tag, "42_1h")
	}
	if p.URL != websocket.MapsURL("Main hall") {
		t.Errorf("url = %q, want maps link", p.URL)
	}

	n := sample()
	n.Location = ""
	if got := PayloadFor(n).URL; got != "/" {
		t.Errorf("url = %q, want %q", got, "/")
	}
}

type fakeMailer struct {
	to   []string
	fail string
}

func (m *fakeMailer) SendReminder(_ context.Context, to string, _ model.Notification) error {
	if to == m.fail {
		return errors.New("postmark API error: status 422")
	}
	m.to = append(m.to, to)
	return nil
}

func TestEmail(t *testing.T) {
	m := &fakeMailer{fail: "bad@example.com"}
	err := NewEmail(m, []string{"a@example.com", "bad@example.com", "b@example.com"}).Alert(context.Background(), sample())
	if err == nil {
		t.Error("expected error for failing recipient")
	}
	if len(m.to) != 2 {
		t.Errorf("delivered to %v, want 2 recipients", m.to)
	}
}
