package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/eventbell/internal/model"
	"github.com/google/uuid"
)

// ErrAlreadyFired is returned by Deliver when the key is already in the fired
// ledger. Nothing is pushed in that case.
var ErrAlreadyFired = errors.New("reminder already fired")

// NotificationStore is the persisted reminder feed plus the fired-key ledger.
// Fired keys are only ever inserted, so clearing the feed or restarting the
// process never re-enables a reminder that was already delivered.
type NotificationStore struct {
	db  *sql.DB
	cap int
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db, cap: model.FeedCap}
}

// prepare fills in the generated fields of a new notification.
func prepare(n *model.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *NotificationStore) insert(ctx context.Context, ex execer, n *model.Notification) error {
	var eventStart sql.NullTime
	if n.EventStart != nil {
		eventStart = sql.NullTime{Time: n.EventStart.UTC(), Valid: true}
	}
	var readInt int
	if n.Read {
		readInt = 1
	}

	_, err := ex.ExecContext(ctx,
		`INSERT INTO notifications (id, created_at, read, title, body, event_id, location, fire_key, event_start)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.CreatedAt.UTC(), readInt, n.Title, n.Body, n.EventID, n.Location, n.FireKey, eventStart,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	// Evict everything past the cap, oldest first.
	_, err = ex.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE seq NOT IN (SELECT seq FROM notifications ORDER BY seq DESC LIMIT ?)`,
		s.cap,
	)
	if err != nil {
		return fmt.Errorf("trim notifications: %w", err)
	}
	return nil
}

// Push inserts n at the head of the feed. ID and CreatedAt are generated
// when empty and written back into n.
func (s *NotificationStore) Push(ctx context.Context, n *model.Notification) error {
	prepare(n)
	return s.insert(ctx, s.db, n)
}

// MarkFired records key in the fired ledger. Recording a key twice is a no-op.
func (s *NotificationStore) MarkFired(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO fired_keys (key) VALUES (?)`, key)
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	return nil
}

// Deliver records key as fired and pushes n in one transaction. Either both
// happen or neither does. A key that was already fired yields ErrAlreadyFired.
func (s *NotificationStore) Deliver(ctx context.Context, n *model.Notification, key string) error {
	prepare(n)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deliver: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO fired_keys (key) VALUES (?)`, key)
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	if affected == 0 {
		return ErrAlreadyFired
	}
	if err := s.insert(ctx, tx, n); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deliver: %w", err)
	}
	return nil
}

// IsFired reports whether key is in the fired ledger.
func (s *NotificationStore) IsFired(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fired_keys WHERE key = ?`, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check fired key: %w", err)
	}
	return count > 0, nil
}

// FiredKeys returns the whole fired ledger as a set.
func (s *NotificationStore) FiredKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM fired_keys`)
	if err != nil {
		return nil, fmt.Errorf("list fired keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan fired key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// MarkRead sets read on the notification with the given id. Unknown ids are
// ignored.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE read = 0`)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// ClearAll empties the feed. The fired ledger is left untouched.
func (s *NotificationStore) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications`)
	if err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

// List returns the feed, newest first.
func (s *NotificationStore) List(ctx context.Context) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, read, title, body, event_id, location, fire_key, event_start
		 FROM notifications ORDER BY seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		var n model.Notification
		var readInt int
		var eventStart sql.NullTime
		if err := rows.Scan(&n.ID, &n.CreatedAt, &readInt, &n.Title, &n.Body, &n.EventID, &n.Location, &n.FireKey, &eventStart); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = readInt != 0
		if eventStart.Valid {
			t := eventStart.Time
			n.EventStart = &t
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// UnreadCount returns the badge count of the feed.
func (s *NotificationStore) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
