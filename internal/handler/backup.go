package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/eventbell/internal/backup"
	"github.com/dukerupert/eventbell/internal/model"
)

// BackupRunner takes backups on demand.
type BackupRunner interface {
	Status() backup.Status
	RunNow(ctx context.Context) (*model.Backup, error)
}

// BackupLister lists backup records.
type BackupLister interface {
	List(ctx context.Context, limit int) ([]model.Backup, error)
}

type BackupHandler struct {
	runner BackupRunner
	store  BackupLister
	logger *slog.Logger
}

func NewBackupHandler(runner BackupRunner, store BackupLister, logger *slog.Logger) *BackupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupHandler{runner: runner, store: store, logger: logger}
}

const backupListLimit = 20

// Create handles POST /api/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	record, err := h.runner.RunNow(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, record)
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
	case errors.Is(err, backup.ErrInProgress):
		writeError(w, http.StatusConflict, "a backup is already running")
	default:
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
	}
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.store.List(r.Context(), backupListLimit)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Status())
}
