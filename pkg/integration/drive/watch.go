package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/db"
)

// Metadata keys added to captures imported from Drive.
const (
	MetaDriveFileID   = "drive_file_id"
	MetaDriveFileName = "drive_file_name"
)

const maxImportSize = 10 << 20

// Captures is the part of the capture manager the watcher feeds.
type Captures interface {
	Submit(ctx context.Context, env capture.Envelope) (*capture.Item, error)
}

// WatchStore remembers which Drive files were already imported.
type WatchStore interface {
	GetDriveWatchByFileID(ctx context.Context, driveFileID string) (*db.DriveWatch, error)
	InsertDriveWatch(ctx context.Context, driveFileID, fileName, captureItemID string, processedAt time.Time) error
}

// Watcher polls a Drive folder and turns every new photo or text note into
// a capture for one owner.
type Watcher struct {
	service  DriveAPI
	captures Captures
	store    WatchStore
	ownerID  string
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	done     chan struct{}
}

// NewWatcher creates a Drive watcher importing into ownerID's inbox.
func NewWatcher(service DriveAPI, captures Captures, store WatchStore, ownerID string, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		service:  service,
		captures: captures,
		store:    store,
		ownerID:  ownerID,
		interval: interval,
		logger:   logger.With("component", "drive-watch", "owner", ownerID),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one pass immediately and then polls until Stop.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		if _, err := w.watchOnce(ctx); err != nil {
			w.logger.Error("drive watch failed", "error", err)
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.watchOnce(ctx); err != nil {
					w.logger.Error("drive watch failed", "error", err)
				}
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the watch loop and waits for the current pass.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.done
}

// watchOnce imports every unseen file and returns how many captures it made.
func (w *Watcher) watchOnce(ctx context.Context) (int, error) {
	files, err := w.service.ListFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("list files: %w", err)
	}

	imported := 0
	for _, f := range files {
		channel, ok := channelFor(f)
		if !ok {
			continue
		}
		rec, err := w.store.GetDriveWatchByFileID(ctx, f.ID)
		if err != nil {
			w.logger.Warn("drive watch lookup failed", "file", f.ID, "error", err)
			continue
		}
		if rec != nil {
			continue
		}

		data, err := w.download(ctx, f.ID)
		if err != nil {
			w.logger.Warn("drive download failed", "file", f.Name, "error", err)
			continue
		}

		env := capture.Envelope{
			OwnerID:      w.ownerID,
			InputChannel: channel,
			SourceMetadata: map[string]string{
				MetaDriveFileID:   f.ID,
				MetaDriveFileName: f.Name,
			},
		}
		if channel == capture.ChannelImage {
			env.AttachmentBytes = data
			env.AttachmentName = f.Name
		} else {
			env.RawContent = string(data)
		}
		item, err := w.captures.Submit(ctx, env)
		if err != nil {
			// Left unrecorded so the next pass retries it.
			w.logger.Warn("drive import failed", "file", f.Name, "error", err)
			continue
		}
		if err := w.store.InsertDriveWatch(ctx, f.ID, f.Name, item.ID, time.Now()); err != nil {
			w.logger.Error("failed to record drive import", "file", f.Name, "capture", item.ID, "error", err)
			continue
		}
		imported++
		w.logger.Info("imported drive file", "file", f.Name, "capture", item.ID)
	}
	return imported, nil
}

func (w *Watcher) download(ctx context.Context, fileID string) ([]byte, error) {
	reader, err := w.service.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(io.LimitReader(reader, maxImportSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImportSize {
		return nil, fmt.Errorf("file larger than %d bytes", maxImportSize)
	}
	return data, nil
}

// channelFor picks the capture channel for a Drive file; other file kinds
// are not imported.
func channelFor(f FileInfo) (capture.Channel, bool) {
	if strings.HasPrefix(f.MimeType, "image/") {
		return capture.ChannelImage, true
	}
	switch strings.ToLower(path.Ext(f.Name)) {
	case ".txt", ".md":
		return capture.ChannelText, true
	}
	if f.MimeType == "text/plain" {
		return capture.ChannelText, true
	}
	return "", false
}
