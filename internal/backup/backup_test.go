package backup

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/robfig/cron/v3"

	"github.com/dukerupert/eventbell/internal/database"
	"github.com/dukerupert/eventbell/internal/model"
	"github.com/dukerupert/eventbell/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

var testS3 = S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "us-east-1"}

// setupManager opens an on-disk feed database with one delivered reminder
// and returns a manager wired to a mock S3.
func setupManager(t *testing.T) (*Manager, *mockS3Client, *store.BackupStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "eventbell.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	feed := store.NewNotificationStore(db)
	n := &model.Notification{Title: model.NotifTitleEventComing, Body: "1 hour left • Hackathon", EventID: "42"}
	if err := feed.Deliver(context.Background(), n, "42_1h"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	bs := store.NewBackupStore(db)
	m := NewManager(Config{S3: testS3, DBPath: dbPath, Passphrase: "hunter2"}, db, bs, nil, nil)
	mock := newMockS3()
	m.client = mock
	return m, mock, bs, dbPath
}

func TestManagerStateLifecycle(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want State
	}{
		{"no s3", Config{DBPath: "/tmp/x.db", Passphrase: "p"}, StateDisabled},
		{"no passphrase", Config{S3: testS3, DBPath: "/tmp/x.db"}, StateDisabled},
		{"memory db", Config{S3: testS3, DBPath: ":memory:", Passphrase: "p"}, StateDisabled},
		{"complete", Config{S3: testS3, DBPath: "/tmp/x.db", Passphrase: "p"}, StateIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.cfg, nil, nil, nil, nil)
			if got := m.Status().State; got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunNowUploadsEncryptedDatabase(t *testing.T) {
	m, mock, bs, _ := setupManager(t)
	ctx := context.Background()

	var states []State
	m.callback = func(s Status) { states = append(states, s.State) }

	record, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if !strings.HasPrefix(record.S3Key, "eventbell/eventbell-") {
		t.Errorf("s3 key = %q", record.S3Key)
	}

	sealed, ok := mock.objects[record.S3Key]
	if !ok {
		t.Fatalf("object %q not uploaded", record.S3Key)
	}
	plain, err := Open(sealed, "hunter2")
	if err != nil {
		t.Fatalf("open uploaded archive: %v", err)
	}
	if !strings.HasPrefix(string(plain), "SQLite format 3") {
		t.Error("uploaded archive is not a SQLite database")
	}

	got, _ := bs.GetByID(ctx, record.ID)
	if got.Status != model.BackupStatusCompleted || got.SizeBytes != int64(len(sealed)) {
		t.Errorf("record = %+v", got)
	}

	st := m.Status()
	if st.State != StateIdle || st.LastBackup == nil || st.InProgress {
		t.Errorf("status = %+v", st)
	}
	if len(states) != 2 || states[0] != StateRunning || states[1] != StateIdle {
		t.Errorf("callback states = %v, want [running idle]", states)
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock, bs, _ := setupManager(t)
	mock.putErr = errors.New("access denied")
	ctx := context.Background()

	if _, err := m.RunNow(ctx); err == nil {
		t.Fatal("expected error")
	}
	if st := m.Status(); st.State != StateError || st.InProgress {
		t.Errorf("status = %+v", st)
	}

	list, _ := bs.List(ctx, 10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed || !strings.Contains(list[0].ErrorMessage, "access denied") {
		t.Errorf("records = %+v", list)
	}

	// A later run recovers.
	mock.putErr = nil
	if _, err := m.RunNow(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestRunNowDisabled(t *testing.T) {
	m := NewManager(Config{}, nil, nil, nil, nil)
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}

func TestRunNowRejectsOverlap(t *testing.T) {
	m, _, _, _ := setupManager(t)
	m.status.InProgress = true
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("err = %v, want ErrInProgress", err)
	}
}

func TestRestore(t *testing.T) {
	m, _, _, _ := setupManager(t)
	ctx := context.Background()

	record, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(ctx, record.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	db, err := database.Open(dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer db.Close()
	if ok, _ := store.NewNotificationStore(db).IsFired(ctx, "42_1h"); !ok {
		t.Error("restored database lost the fired ledger")
	}

	if err := m.Restore(ctx, 999, dst); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCleanup(t *testing.T) {
	m, mock, bs, _ := setupManager(t)
	ctx := context.Background()

	record, _ := m.RunNow(ctx)
	if _, err := m.db.Exec(`UPDATE backups SET created_at = datetime('now', '-90 days') WHERE id = ?`, record.ID); err != nil {
		t.Fatalf("age backup: %v", err)
	}

	if err := m.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, ok := mock.objects[record.S3Key]; ok {
		t.Error("expired object still in bucket")
	}
	if got, _ := bs.GetByID(ctx, record.ID); got != nil {
		t.Error("expired record still present")
	}
}

func TestRegister(t *testing.T) {
	c := cron.New()

	if err := NewManager(Config{}, nil, nil, nil, nil).Register(c, "@daily"); err != nil {
		t.Fatalf("register disabled: %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Error("disabled manager was scheduled")
	}

	m, _, _, _ := setupManager(t)
	if err := m.Register(c, "@daily"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(c.Entries()))
	}
	if err := m.Register(c, "nope"); err == nil {
		t.Error("expected error for bad spec")
	}
}
