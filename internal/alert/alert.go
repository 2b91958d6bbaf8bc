// Package alert fans a delivered reminder out to the display, browser push
// and email channels. Each type satisfies reminder.Alerter.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/push"
	"github.com/dukerupert/eventbell/internal/websocket"
)

// Broadcaster delivers a message to every connected display.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

// Toast shows the reminder as a popup on connected displays.
type Toast struct {
	hub Broadcaster
}

func NewToast(hub Broadcaster) *Toast {
	return &Toast{hub: hub}
}

func (t *Toast) Alert(_ context.Context, n model.Notification) error {
	t.hub.Broadcast(websocket.NotificationCreated(n))
	return nil
}

// Sound asks connected displays to play the reminder cue.
type Sound struct {
	hub Broadcaster
}

func NewSound(hub Broadcaster) *Sound {
	return &Sound{hub: hub}
}

func (s *Sound) Alert(_ context.Context, n model.Notification) error {
	s.hub.Broadcast(websocket.SoundPlay(n.ID))
	return nil
}

// PushSender sends one browser push message.
type PushSender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

// SubscriptionStore lists and prunes push subscriptions.
type SubscriptionStore interface {
	List(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
}

// WebPush sends the reminder to every registered browser.
type WebPush struct {
	sender PushSender
	subs   SubscriptionStore
	logger *slog.Logger
}

func NewWebPush(sender PushSender, subs SubscriptionStore, logger *slog.Logger) *WebPush {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebPush{sender: sender, subs: subs, logger: logger}
}

func (w *WebPush) Alert(ctx context.Context, n model.Notification) error {
	_, err := w.SendAll(ctx, PayloadFor(n))
	return err
}

// PayloadFor builds the push payload for a notification. Clicking a
// notification with a location opens the map.
func PayloadFor(n model.Notification) push.Payload {
	p := push.Payload{
		Title: n.Title,
		Body:  n.Body,
		URL:   "/",
		Tag:   n.FireKey,
	}
	if n.Location != "" {
		p.URL = websocket.MapsURL(n.Location)
	}
	return p
}

// SendAll sends payload to every subscription and returns how many
// succeeded. Expired subscriptions are deleted. Other failures are joined
// into the returned error.
func (w *WebPush) SendAll(ctx context.Context, payload push.Payload) (int, error) {
	subs, err := w.subs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list push subscriptions: %w", err)
	}

	sent := 0
	var errs []error
	for i := range subs {
		sub := &subs[i]
		err := w.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, push.ErrExpired):
			w.logger.Info("removing expired push subscription", "id", sub.ID, "device", sub.DeviceName)
			if err := w.subs.DeleteSubscription(ctx, sub.ID); err != nil {
				errs = append(errs, fmt.Errorf("delete expired subscription %d: %w", sub.ID, err))
			}
		default:
			errs = append(errs, fmt.Errorf("push to subscription %d: %w", sub.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}

// Mailer sends one reminder email.
type Mailer interface {
	SendReminder(ctx context.Context, toEmail string, n model.Notification) error
}

// Email sends the reminder to a fixed recipient list.
type Email struct {
	mailer Mailer
	to     []string
}

func NewEmail(mailer Mailer, to []string) *Email {
	return &Email{mailer: mailer, to: to}
}

func (e *Email) Alert(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, addr := range e.to {
		if err := e.mailer.SendReminder(ctx, addr, n); err != nil {
			errs = append(errs, fmt.Errorf("email %s: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}
