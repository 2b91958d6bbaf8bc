package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/eventbell/internal/alert"
	"github.com/dukerupert/eventbell/internal/backup"
	"github.com/dukerupert/eventbell/internal/config"
	"github.com/dukerupert/eventbell/internal/database"
	"github.com/dukerupert/eventbell/internal/email"
	"github.com/dukerupert/eventbell/internal/logging"
	"github.com/dukerupert/eventbell/internal/middleware"
	"github.com/dukerupert/eventbell/internal/push"
	"github.com/dukerupert/eventbell/internal/reminder"
	"github.com/dukerupert/eventbell/internal/server"
	"github.com/dukerupert/eventbell/internal/source"
	"github.com/dukerupert/eventbell/internal/store"
)

type flags struct {
	configPath string
	genVAPID   bool
	hashToken  string
	restoreID  int64
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "eventbell.yaml", "Path to config file")
	flag.BoolVar(&f.genVAPID, "gen-vapid", false, "Print a new VAPID key pair and exit")
	flag.StringVar(&f.hashToken, "hash-token", "", "Print the bcrypt hash of an API token and exit")
	flag.Int64Var(&f.restoreID, "restore", 0, "Download backup `id` next to the database file and exit")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	switch {
	case f.genVAPID:
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			log.Fatalf("generate vapid keys: %v", err)
		}
		fmt.Printf("vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
		return
	case f.hashToken != "":
		hash, err := middleware.HashToken(f.hashToken)
		if err != nil {
			log.Fatalf("hash token: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	events, refresher := buildSource(cfg, loc)

	opts := server.Options{
		Events:   events,
		Location: loc,
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  cfg.Backup.S3.Endpoint,
				Bucket:    cfg.Backup.S3.Bucket,
				Region:    cfg.Backup.S3.Region,
				AccessKey: cfg.Backup.S3.AccessKey,
				SecretKey: cfg.Backup.S3.SecretKey,
			},
			DBPath:        cfg.Database,
			Passphrase:    cfg.Backup.Passphrase,
			Prefix:        cfg.Backup.Prefix,
			RetentionDays: cfg.Backup.RetentionDays,
		},
		Push: push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		},
		TokenHashes: cfg.Auth.TokenHashes,
	}
	if !cfg.Persistent() {
		logger.Warn("feed is not persisted; reminders may repeat after a restart")
		opts.Feed = store.NewMemoryFeed()
	}

	srv := server.New(db, opts, logger)

	if f.restoreID != 0 {
		code := restore(srv.BackupManager(), f.restoreID, cfg.Database+".restored", logger)
		db.Close()
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, err := buildCron(cfg, srv, refresher, logger)
	if err != nil {
		log.Fatalf("schedule: %v", err)
	}
	scheduler.Start()

	alerters := srv.Alerters()
	if cfg.Email.Enabled() {
		mailer := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.Email.DashboardURL)
		alerters = append(alerters, alert.NewEmail(mailer, cfg.Email.To))
	}

	reminders := reminder.NewScheduler(events, srv.Feed(), logger.With("component", "reminder"),
		reminder.WithLocation(loc),
		reminder.WithAlerters(alerters...),
	)
	driver := reminder.NewDriver(reminders, cfg.TickInterval, logger.With("component", "driver"))
	driver.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("eventbell running", "addr", cfg.Listen, "source", cfg.Source.Kind, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	driver.Stop()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// buildSource returns the configured event source and, for remote sources,
// the poller that keeps it fresh.
func buildSource(cfg *config.Config, loc *time.Location) (reminder.EventSource, *source.Poller) {
	logger := slog.Default().With("component", "source")
	var remote interface {
		reminder.EventSource
		source.Refresher
	}

	switch cfg.Source.Kind {
	case config.SourceICS:
		remote = source.NewICS(cfg.Source.URL, loc)
	case config.SourceHTTP:
		remote = source.NewHTTP(cfg.Source.URL)
	default:
		events := make(source.Static, 0, len(cfg.Source.Events))
		for _, e := range cfg.Source.Events {
			events = append(events, e.Event())
		}
		logger.Info("using static events", "count", len(events))
		return events, nil
	}
	return remote, source.NewPoller(remote, cfg.Source.Refresh, logger)
}

// buildCron schedules source refresh, backups and rate limiter cleanup on one
// cron instance. The source is refreshed once before returning so the first
// reminder tick sees real data.
func buildCron(cfg *config.Config, srv *server.Server, poller *source.Poller, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()

	if poller != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		poller.RefreshNow(ctx)
		cancel()
		if _, err := poller.Register(c); err != nil {
			return nil, err
		}
	}

	if err := srv.BackupManager().Register(c, cfg.Backup.Schedule); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cfg.CleanupCron, srv.RateLimiter().Cleanup); err != nil {
		return nil, fmt.Errorf("schedule rate limiter cleanup %q: %w", cfg.CleanupCron, err)
	}

	logger.Debug("cron scheduled", "entries", len(c.Entries()))
	return c, nil
}

func restore(mgr *backup.Manager, id int64, dst string, logger *slog.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := mgr.Restore(ctx, id, dst); err != nil {
		logger.Error("restore failed", "id", id, "error", err)
		return 1
	}
	logger.Info("backup restored; stop eventbell and move it over the database to use it", "id", id, "path", dst)
	return 0
}
