package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/reminder"
	"github.com/dukerupert/eventbell/internal/websocket"
)

// FeedStore is the part of the notification store the feed API uses.
type FeedStore interface {
	List(ctx context.Context) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	ClearAll(ctx context.Context) error
}

type FeedHandler struct {
	feed   FeedStore
	events reminder.EventSource
	loc    *time.Location
	hub    *websocket.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewFeedHandler(feed FeedStore, events reminder.EventSource, loc *time.Location, hub *websocket.Hub, logger *slog.Logger) *FeedHandler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{feed: feed, events: events, loc: loc, hub: hub, logger: logger, now: time.Now}
}

func (h *FeedHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type feedResponse struct {
	Items       []model.Notification `json:"items"`
	UnreadCount int                  `json:"unread_count"`
}

// List handles GET /api/notifications
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.feed.List(r.Context())
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	writeJSON(w, http.StatusOK, feedResponse{Items: items, UnreadCount: unread})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *FeedHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.feed.MarkRead(r.Context(), id); err != nil {
		h.logger.Error("mark notification read", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	unread, ok := h.unread(w, r)
	if !ok {
		return
	}
	h.broadcast(websocket.NotificationRead(id, unread))
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": unread})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *FeedHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.MarkAllRead(r.Context()); err != nil {
		h.logger.Error("mark all notifications read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	h.broadcast(websocket.FeedChanged("read_all", 0))
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": 0})
}

// Clear handles DELETE /api/notifications
func (h *FeedHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.ClearAll(r.Context()); err != nil {
		h.logger.Error("clear notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear notifications")
		return
	}
	h.broadcast(websocket.FeedChanged("cleared", 0))
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) unread(w http.ResponseWriter, r *http.Request) (int, bool) {
	unread, err := h.feed.UnreadCount(r.Context())
	if err != nil {
		h.logger.Error("count unread notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return 0, false
	}
	return unread, true
}

// UnreadGreeting returns the message a display receives when it connects.
func (h *FeedHandler) UnreadGreeting(ctx context.Context) []websocket.Message {
	unread, err := h.feed.UnreadCount(ctx)
	if err != nil {
		h.logger.Warn("greeting unread count", "error", err)
		return nil
	}
	return []websocket.Message{websocket.FeedChanged("sync", unread)}
}

type upcomingEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	Location         string    `json:"location,omitempty"`
	MapsURL          string    `json:"maps_url,omitempty"`
	Status           string    `json:"status,omitempty"`
	Start            time.Time `json:"start"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// Upcoming handles GET /api/events/upcoming. Only active events that have
// not started yet are listed, soonest first.
func (h *FeedHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	out := []upcomingEvent{}
	if h.events != nil {
		for _, e := range h.events.Events() {
			if e.ID == "" || e.Title == "" || !model.IsActive(e) {
				continue
			}
			start, ok := reminder.EventStart(e, h.loc)
			if !ok {
				continue
			}
			remaining := start.Sub(now)
			if remaining <= 0 {
				continue
			}
			out = append(out, upcomingEvent{
				ID:               e.ID,
				Title:            e.Title,
				Date:             e.Date,
				Time:             e.Time,
				Location:         e.Location,
				MapsURL:          websocket.MapsURL(e.Location),
				Status:           e.Status.String(),
				Start:            start,
				RemainingSeconds: int64(remaining / time.Second),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	writeJSON(w, http.StatusOK, out)
}
