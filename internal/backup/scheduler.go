package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"memo-service/internal/repository/sqlite"
	"memo-service/internal/storage"
)

const (
	snapshotPrefix      = "memo-"
	snapshotSuffix      = ".db"
	snapshotTimeLayout  = "20060102T150405Z"
	snapshotContentType = "application/vnd.sqlite3"
)

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	Keep      int
	TempDir   string
	Logger    *logrus.Logger
}

// Scheduler periodically snapshots the database into object storage and
// prunes old snapshots.
type Scheduler struct {
	cfg     Config
	db      *sql.DB
	storage storage.Service
	now     func() time.Time

	mu     sync.Mutex // serialises runs
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewScheduler(cfg Config, db *sql.DB, store storage.Service) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 7
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &Scheduler{
		cfg:     cfg,
		db:      db,
		storage: store,
		now:     time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(runCtx); err != nil && runCtx.Err() == nil {
					s.cfg.Logger.WithError(err).Error("database backup failed")
				}
			}
		}
	}()

	s.cfg.Logger.Infof("backup scheduler started, every %s to s3://%s/%s", s.cfg.Interval, s.cfg.Bucket, s.cfg.KeyPrefix)
	return nil
}

func (s *Scheduler) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("backup scheduler stopped")
}

// RunOnce takes one snapshot, uploads it and prunes old ones. It returns the
// location of the uploaded snapshot.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := os.MkdirTemp(s.cfg.TempDir, "memo-backup-*")
	if err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	defer os.RemoveAll(dir)

	name := snapshotPrefix + s.now().UTC().Format(snapshotTimeLayout) + snapshotSuffix
	local := filepath.Join(dir, name)
	if err := sqlite.Snapshot(ctx, s.db, local); err != nil {
		return "", err
	}

	location, err := s.storage.UploadFile(ctx, local, storage.UploadOptions{
		Bucket:      s.cfg.Bucket,
		Key:         s.objectKey(name),
		ContentType: snapshotContentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	s.cfg.Logger.WithField("location", location).Info("database backup uploaded")

	if err := s.prune(ctx); err != nil {
		s.cfg.Logger.WithError(err).Warn("prune old backups")
	}
	return location, nil
}

func (s *Scheduler) objectKey(name string) string {
	if s.cfg.KeyPrefix == "" {
		return name
	}
	return s.cfg.KeyPrefix + "/" + name
}

// prune keeps the newest cfg.Keep snapshots. Snapshot keys embed a sortable
// UTC timestamp, so lexical order is chronological order.
func (s *Scheduler) prune(ctx context.Context) error {
	listPrefix := ""
	if s.cfg.KeyPrefix != "" {
		listPrefix = s.cfg.KeyPrefix + "/"
	}

	objects, err := s.storage.ListObjects(ctx, s.cfg.Bucket, listPrefix)
	if err != nil {
		return err
	}

	var keys []string
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, listPrefix)
		if strings.Contains(rest, "/") {
			continue
		}
		if base := path.Base(rest); strings.HasPrefix(base, snapshotPrefix) && strings.HasSuffix(base, snapshotSuffix) {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) <= s.cfg.Keep {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	stale := keys[s.cfg.Keep:]
	if err := s.storage.DeleteObjects(ctx, s.cfg.Bucket, stale); err != nil {
		return err
	}
	s.cfg.Logger.WithField("removed", len(stale)).Info("old database backups pruned")
	return nil
}
