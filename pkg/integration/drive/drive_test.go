package drive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/db"
)

// mockDriveAPI is a test double for DriveAPI.
type mockDriveAPI struct {
	files        []FileInfo
	uploadedIDs  map[string]string // localPath -> id
	updatedFiles map[string]bool   // fileID -> true
	downloads    map[string]string // fileID -> content
}

func newMockDriveAPI() *mockDriveAPI {
	return &mockDriveAPI{
		uploadedIDs:  make(map[string]string),
		updatedFiles: make(map[string]bool),
		downloads:    make(map[string]string),
	}
}

func (m *mockDriveAPI) ListFiles(_ context.Context) ([]FileInfo, error) {
	return m.files, nil
}

func (m *mockDriveAPI) UploadFile(_ context.Context, localPath, fileName, existingFileID string) (string, error) {
	if existingFileID != "" {
		m.updatedFiles[existingFileID] = true
		return existingFileID, nil
	}
	id := "drv-" + fileName
	m.uploadedIDs[localPath] = id
	return id, nil
}

func (m *mockDriveAPI) DownloadFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	content, ok := m.downloads[fileID]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// stubCaptures records submitted envelopes.
type stubCaptures struct {
	envs []capture.Envelope
	err  error
}

func (s *stubCaptures) Submit(_ context.Context, env capture.Envelope) (*capture.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.envs = append(s.envs, env)
	return &capture.Item{ID: "cap-" + env.SourceMetadata[MetaDriveFileID], OwnerID: env.OwnerID}, nil
}

func setupTestDB(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return db.NewRepository(database)
}

func writeNote(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// --- Backup tests ---

func TestBackupNewFile(t *testing.T) {
	repo := setupTestDB(t)
	dir := t.TempDir()
	writeNote(t, dir, filepath.Join("events", "dentist.md"), "# Dentist")
	writeNote(t, dir, "photo.jpg", "binary")

	mock := newMockDriveAPI()
	backup := NewBackup(mock, repo, dir, time.Hour, nil)

	if n := backup.backupOnce(context.Background()); n != 1 {
		t.Fatalf("uploaded %d files, want 1", n)
	}

	rel := filepath.Join("events", "dentist.md")
	rec, err := repo.GetDriveSyncByLocalPath(context.Background(), rel)
	if err != nil || rec == nil {
		t.Fatalf("expected sync record, got %v %v", rec, err)
	}
	if rec.Direction != "upload" || rec.DriveFileID != "drv-"+rel {
		t.Errorf("record = %+v", rec)
	}
}

func TestBackupUnmodifiedFile(t *testing.T) {
	repo := setupTestDB(t)
	dir := t.TempDir()
	writeNote(t, dir, "note.md", "# Test")

	mock := newMockDriveAPI()
	backup := NewBackup(mock, repo, dir, time.Hour, nil)

	backup.backupOnce(context.Background())
	if n := backup.backupOnce(context.Background()); n != 0 {
		t.Errorf("second pass uploaded %d files", n)
	}
	if len(mock.updatedFiles) != 0 {
		t.Errorf("expected 0 updates for unmodified file, got %d", len(mock.updatedFiles))
	}
}

func TestBackupModifiedFile(t *testing.T) {
	repo := setupTestDB(t)
	dir := t.TempDir()
	p := writeNote(t, dir, "note.md", "# Test")

	mock := newMockDriveAPI()
	backup := NewBackup(mock, repo, dir, time.Hour, nil)
	backup.backupOnce(context.Background())

	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatal(err)
	}
	backup.backupOnce(context.Background())

	if !mock.updatedFiles["drv-note.md"] {
		t.Errorf("expected modified file to be re-uploaded, updates: %v", mock.updatedFiles)
	}
}

func TestBackupSkipsHiddenDirs(t *testing.T) {
	repo := setupTestDB(t)
	dir := t.TempDir()
	writeNote(t, dir, filepath.Join(".git", "config.md"), "# config")

	mock := newMockDriveAPI()
	NewBackup(mock, repo, dir, time.Hour, nil).backupOnce(context.Background())

	if len(mock.uploadedIDs) != 0 {
		t.Errorf("should not upload hidden files, uploaded %v", mock.uploadedIDs)
	}
}

// --- Watcher tests ---

func TestWatchImportsPhotosAndNotes(t *testing.T) {
	repo := setupTestDB(t)
	mock := newMockDriveAPI()
	mock.files = []FileInfo{
		{ID: "drv-1", Name: "permission-slip.jpg", MimeType: "image/jpeg"},
		{ID: "drv-2", Name: "groceries.txt", MimeType: "text/plain"},
		{ID: "drv-3", Name: "budget.xlsx", MimeType: "application/vnd.ms-excel"},
	}
	mock.downloads["drv-1"] = "\xff\xd8\xff\xe0jpeg"
	mock.downloads["drv-2"] = "buy milk and eggs"
	caps := &stubCaptures{}

	w := NewWatcher(mock, caps, repo, "owner-1", time.Hour, nil)
	n, err := w.watchOnce(context.Background())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if n != 2 || len(caps.envs) != 2 {
		t.Fatalf("imported %d, submitted %d; want 2", n, len(caps.envs))
	}

	photo := caps.envs[0]
	if photo.InputChannel != capture.ChannelImage || photo.AttachmentName != "permission-slip.jpg" || photo.OwnerID != "owner-1" {
		t.Errorf("photo envelope = %+v", photo)
	}
	note := caps.envs[1]
	if note.InputChannel != capture.ChannelText || note.RawContent != "buy milk and eggs" {
		t.Errorf("note envelope = %+v", note)
	}

	rec, err := repo.GetDriveWatchByFileID(context.Background(), "drv-1")
	if err != nil || rec == nil {
		t.Fatalf("expected watch record, got %v %v", rec, err)
	}
	if rec.FileName != "permission-slip.jpg" || rec.CaptureItemID != "cap-drv-1" {
		t.Errorf("record = %+v", rec)
	}
}

func TestWatchAlreadyProcessed(t *testing.T) {
	repo := setupTestDB(t)
	mock := newMockDriveAPI()
	mock.files = []FileInfo{{ID: "drv-1", Name: "flyer.png", MimeType: "image/png"}}
	mock.downloads["drv-1"] = "png"
	caps := &stubCaptures{}

	w := NewWatcher(mock, caps, repo, "owner-1", time.Hour, nil)
	w.watchOnce(context.Background())
	n, _ := w.watchOnce(context.Background())

	if n != 0 || len(caps.envs) != 1 {
		t.Errorf("already imported file was imported again: n=%d submits=%d", n, len(caps.envs))
	}
}

func TestWatchRetriesFailedImports(t *testing.T) {
	repo := setupTestDB(t)
	mock := newMockDriveAPI()
	mock.files = []FileInfo{{ID: "drv-1", Name: "flyer.png", MimeType: "image/png"}}
	mock.downloads["drv-1"] = "png"
	caps := &stubCaptures{err: errors.New("image capture is not enabled")}

	w := NewWatcher(mock, caps, repo, "owner-1", time.Hour, nil)
	if n, _ := w.watchOnce(context.Background()); n != 0 {
		t.Fatalf("imported %d", n)
	}
	rec, _ := repo.GetDriveWatchByFileID(context.Background(), "drv-1")
	if rec != nil {
		t.Fatal("failed import must not be recorded")
	}

	caps.err = nil
	if n, _ := w.watchOnce(context.Background()); n != 1 {
		t.Errorf("retry imported %d, want 1", n)
	}
}

func TestChannelFor(t *testing.T) {
	tests := []struct {
		file FileInfo
		want capture.Channel
		ok   bool
	}{
		{FileInfo{Name: "a.jpg", MimeType: "image/jpeg"}, capture.ChannelImage, true},
		{FileInfo{Name: "notes.MD", MimeType: "application/octet-stream"}, capture.ChannelText, true},
		{FileInfo{Name: "x", MimeType: "text/plain"}, capture.ChannelText, true},
		{FileInfo{Name: "doc.pdf", MimeType: "application/pdf"}, "", false},
	}
	for _, tt := range tests {
		got, ok := channelFor(tt.file)
		if got != tt.want || ok != tt.ok {
			t.Errorf("channelFor(%s) = %q, %v; want %q, %v", tt.file.Name, got, ok, tt.want, tt.ok)
		}
	}
}
