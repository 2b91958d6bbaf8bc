package websocket

import (
	"net/url"

	"github.com/dukerupert/eventbell/internal/model"
)

// Entities carried by eventbell messages.
const (
	EntityNotification = "notification"
	EntityFeed         = "feed"
	EntitySound        = "sound"
)

// Sound cue played by displays on every new reminder. FallbackHz and
// FallbackMs describe the tone to synthesize when the asset cannot play.
const (
	SoundAsset      = "/sounds/notify.mp3"
	SoundFallbackHz = 880
	SoundFallbackMs = 150
)

// MapsURL returns a search link for location, or "" when location is empty.
func MapsURL(location string) string {
	if location == "" {
		return ""
	}
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(location)
}

// NotificationCreated is the toast message for a freshly delivered reminder.
func NotificationCreated(n model.Notification) Message {
	extra := map[string]any{
		"title":    n.Title,
		"body":     n.Body,
		"event_id": n.EventID,
	}
	if n.Location != "" {
		extra["location"] = n.Location
		extra["maps_url"] = MapsURL(n.Location)
	}
	if n.EventStart != nil {
		extra["event_start"] = n.EventStart
	}
	return NewMessage(EntityNotification, "created", n.ID, extra)
}

// NotificationRead tells displays one entry was read.
func NotificationRead(id string, unread int) Message {
	return NewMessage(EntityNotification, "read", id, map[string]any{"unread_count": unread})
}

// FeedChanged tells displays to reload the feed after a bulk change
// (read-all, clear).
func FeedChanged(action string, unread int) Message {
	return NewMessage(EntityFeed, action, "", map[string]any{"unread_count": unread})
}

// SoundPlay asks displays to play the reminder cue.
func SoundPlay(notificationID string) Message {
	return NewMessage(EntitySound, "play", notificationID, map[string]any{
		"asset":       SoundAsset,
		"fallback_hz": SoundFallbackHz,
		"fallback_ms": SoundFallbackMs,
	})
}
