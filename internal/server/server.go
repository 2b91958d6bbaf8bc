package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/eventbell/internal/alert"
	"github.com/dukerupert/eventbell/internal/backup"
	"github.com/dukerupert/eventbell/internal/handler"
	"github.com/dukerupert/eventbell/internal/middleware"
	"github.com/dukerupert/eventbell/internal/push"
	"github.com/dukerupert/eventbell/internal/reminder"
	"github.com/dukerupert/eventbell/internal/source"
	"github.com/dukerupert/eventbell/internal/store"
	ws "github.com/dukerupert/eventbell/internal/websocket"
)

// SourceStatus reports the health of the upstream event source.
type SourceStatus interface {
	Status() source.Status
}

// Feed is the notification store shared by the HTTP API and the scheduler.
type Feed interface {
	handler.FeedStore
	reminder.Feed
}

// Options carries what the server needs beyond the database.
type Options struct {
	// Feed overrides the SQLite notification store, e.g. with an in-memory
	// feed.
	Feed        Feed
	Events      reminder.EventSource
	Location    *time.Location
	Backup      backup.Config
	Push        push.Config
	TokenHashes []string
}

type Server struct {
	hub           *ws.Hub
	feedStore     Feed
	feedH         *handler.FeedHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	events        reminder.EventSource
	webPush       *alert.WebPush
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	tokenHashes   []string
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	var feedStore Feed = store.NewNotificationStore(db)
	if opts.Feed != nil {
		feedStore = opts.Feed
	}

	// Backup store + manager
	backupStore := store.NewBackupStore(db)
	backupMgr := backup.NewManager(opts.Backup, db, backupStore, logger.With("component", "backup"), func(s backup.Status) {
		extra := map[string]any{"in_progress": s.InProgress}
		if s.Error != "" {
			extra["error"] = s.Error
		}
		hub.Broadcast(ws.NewMessage("backup", string(s.State), "", extra))
	})

	// Push service, only when VAPID keys are configured
	var webPush *alert.WebPush
	var pushH *handler.PushHandler
	pushSvc := push.NewService(opts.Push)
	if pushSvc.Configured() {
		pushSt := store.NewPushStore(db)
		webPush = alert.NewWebPush(pushSvc, pushSt, logger.With("component", "push"))
		pushH = handler.NewPushHandler(pushSt, pushSvc.VAPIDPublicKey(), webPush, logger.With("component", "push_handler"))
	}

	return &Server{
		hub:           hub,
		feedStore:     feedStore,
		feedH:         handler.NewFeedHandler(feedStore, opts.Events, opts.Location, hub, logger.With("component", "feed")),
		pushH:         pushH,
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		events:        opts.Events,
		webPush:       webPush,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		tokenHashes:   opts.TokenHashes,
		logger:        logger,
	}
}

// Hub returns the display broadcast hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Feed returns the notification store the scheduler writes to.
func (s *Server) Feed() Feed {
	return s.feedStore
}

// Alerters returns the alert channels served over HTTP: the toast and sound
// cue for connected displays, plus browser push when it is configured.
func (s *Server) Alerters() []reminder.Alerter {
	alerters := []reminder.Alerter{alert.NewToast(s.hub), alert.NewSound(s.hub)}
	if s.webPush != nil {
		alerters = append(alerters, s.webPush)
	}
	return alerters
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires the API token when one is configured
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	outerMux.Handle("/", middleware.RequireToken(s.tokenHashes)(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) sourceStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reporter, ok := s.events.(SourceStatus)
	if !ok {
		json.NewEncoder(w).Encode(map[string]string{"kind": "static"})
		return
	}
	json.NewEncoder(w).Encode(reporter.Status())
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, limit int) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return r.URL.Path + "|" + middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Display connection
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.feedH.UnreadGreeting))

	// Feed API routes
	mux.HandleFunc("GET /api/notifications", s.feedH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.feedH.MarkRead)
	mux.HandleFunc("POST /api/notifications/read-all", s.feedH.MarkAllRead)
	mux.HandleFunc("DELETE /api/notifications", s.feedH.Clear)
	mux.HandleFunc("GET /api/events/upcoming", s.feedH.Upcoming)
	mux.HandleFunc("GET /api/source/status", s.sourceStatusHandler)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.rateLimitedHandler(s.pushH.TestNotification, 5))
	}

	// Backup API routes
	mux.HandleFunc("POST /api/backups", s.rateLimitedHandler(s.backupH.Create, 3))
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
}
