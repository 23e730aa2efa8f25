package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memo-service/internal/domain"
	"memo-service/internal/repository/sqlite"
	"memo-service/internal/storage"
)

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) UploadFile(_ context.Context, localPath string, opts storage.UploadOptions) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[opts.Key] = data
	m.mu.Unlock()
	return fmt.Sprintf("s3://%s/%s", opts.Bucket, opts.Key), nil
}

func (m *memoryStorage) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memoryStorage) DeleteObjects(_ context.Context, _ string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

func (m *memoryStorage) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "memo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = sqlite.Migrate(context.Background(), db)
	require.NoError(t, err)

	ctx := context.Background()
	user := &domain.User{Username: "alice", Email: "a@x.com", PasswordHash: "hash"}
	_, err = sqlite.NewUserRepository(db).Create(ctx, user)
	require.NoError(t, err)
	_, err = sqlite.NewMemoRepository(db).Create(ctx, &domain.Memo{UserID: user.ID, Title: "Groceries", Content: "milk"})
	require.NoError(t, err)
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestScheduler_RunOnceUploadsSnapshot(t *testing.T) {
	db := newTestDB(t)
	store := newMemoryStorage()
	s := NewScheduler(Config{Bucket: "bucket", KeyPrefix: "/memo-backups/", Keep: 3, TempDir: t.TempDir(), Logger: quietLogger()}, db, store)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 3, 4, 5, 0, time.UTC) }

	location, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/memo-backups/memo-20240501T030405Z.db", location)

	keys := store.keys()
	require.Len(t, keys, 1)

	// the uploaded bytes are a usable database holding the memo
	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, store.objects[keys[0]], 0o600))
	rdb, err := sqlite.Open(restored)
	require.NoError(t, err)
	defer rdb.Close()
	var title string
	require.NoError(t, rdb.QueryRow(`SELECT title FROM memos`).Scan(&title))
	assert.Equal(t, "Groceries", title)
}

func TestScheduler_PrunesOldSnapshots(t *testing.T) {
	db := newTestDB(t)
	store := newMemoryStorage()
	store.objects["memo-backups/unrelated.txt"] = []byte("keep me")
	store.objects["memo-backups/nested/memo-19990101T000000Z.db"] = []byte("keep me too")

	s := NewScheduler(Config{Bucket: "bucket", KeyPrefix: "memo-backups", Keep: 2, TempDir: t.TempDir(), Logger: quietLogger()}, db, store)
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		clock = clock.Add(time.Hour)
	}

	assert.Equal(t, []string{
		"memo-backups/memo-20240501T020000Z.db",
		"memo-backups/memo-20240501T030000Z.db",
		"memo-backups/nested/memo-19990101T000000Z.db",
		"memo-backups/unrelated.txt",
	}, store.keys())
}

func TestScheduler_UploadFailure(t *testing.T) {
	db := newTestDB(t)
	store := newMemoryStorage()
	store.uploadErr = errors.New("access denied")

	tmp := t.TempDir()
	s := NewScheduler(Config{Bucket: "bucket", TempDir: tmp, Logger: quietLogger()}, db, store)

	_, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "access denied")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary snapshot is removed")
}

func TestScheduler_StartRequiresBucket(t *testing.T) {
	s := NewScheduler(Config{Logger: quietLogger()}, nil, newMemoryStorage())
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StartAndShutdown(t *testing.T) {
	db := newTestDB(t)
	store := newMemoryStorage()
	s := NewScheduler(Config{Bucket: "bucket", KeyPrefix: "b", Interval: 10 * time.Millisecond, Keep: 1, TempDir: t.TempDir(), Logger: quietLogger()}, db, store)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return len(store.keys()) > 0 }, 2*time.Second, 10*time.Millisecond)
	s.Shutdown()

	assert.Len(t, store.keys(), 1)
}
