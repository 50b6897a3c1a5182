package drive

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/db"
)

// BackupStore tracks what was last uploaded for each local file.
type BackupStore interface {
	GetDriveSyncByLocalPath(ctx context.Context, localPath string) (*db.DriveSync, error)
	InsertDriveSync(ctx context.Context, driveFileID, localPath string, syncedAt time.Time, direction string) error
	UpdateDriveSync(ctx context.Context, driveFileID string, syncedAt time.Time) error
}

// Backup uploads new and modified markdown files under dir to Drive.
type Backup struct {
	service  DriveAPI
	store    BackupStore
	dir      string
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
}

// NewBackup creates a Drive backup of dir.
func NewBackup(service DriveAPI, store BackupStore, dir string, interval time.Duration, logger *slog.Logger) *Backup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backup{
		service:  service,
		store:    store,
		dir:      dir,
		interval: interval,
		logger:   logger.With("component", "drive-backup"),
		stopCh:   make(chan struct{}),
	}
}

// Start runs one backup immediately and then on every interval.
func (b *Backup) Start(ctx context.Context) {
	go func() {
		b.backupOnce(ctx)

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.backupOnce(ctx)
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the backup loop.
func (b *Backup) Stop() {
	close(b.stopCh)
}

// backupOnce returns the number of files uploaded. Per-file failures are
// logged and retried on the next pass.
func (b *Backup) backupOnce(ctx context.Context) int {
	uploaded := 0
	err := filepath.WalkDir(b.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		// .git and friends
		if d.IsDir() && p != b.dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(b.dir, p)
		rec, err := b.store.GetDriveSyncByLocalPath(ctx, rel)
		if err != nil {
			b.logger.Warn("drive sync lookup failed", "path", rel, "error", err)
			return nil
		}

		modTime := info.ModTime().Truncate(time.Second)
		switch {
		case rec == nil:
			fileID, err := b.service.UploadFile(ctx, p, rel, "")
			if err != nil {
				b.logger.Warn("drive upload failed", "path", rel, "error", err)
				return nil
			}
			if err := b.store.InsertDriveSync(ctx, fileID, rel, modTime, "upload"); err != nil {
				b.logger.Error("failed to record drive upload", "path", rel, "error", err)
			}
			uploaded++
		case modTime.After(rec.LastSyncedAt):
			if _, err := b.service.UploadFile(ctx, p, rel, rec.DriveFileID); err != nil {
				b.logger.Warn("drive re-upload failed", "path", rel, "error", err)
				return nil
			}
			if err := b.store.UpdateDriveSync(ctx, rec.DriveFileID, modTime); err != nil {
				b.logger.Error("failed to record drive upload", "path", rel, "error", err)
			}
			uploaded++
		}
		return nil
	})
	if err != nil {
		b.logger.Error("drive backup failed", "error", err)
	}
	return uploaded
}
