// Package drive imports photos dropped into a Google Drive folder and backs
// up the markdown export.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// FileInfo is the Drive metadata the watcher and backup look at.
type FileInfo struct {
	ID         string
	Name       string
	MimeType   string
	ModifiedAt time.Time
	Size       int64
}

// DriveAPI is the part of Google Drive used by Backup and Watcher.
type DriveAPI interface {
	ListFiles(ctx context.Context) ([]FileInfo, error)
	UploadFile(ctx context.Context, localPath, fileName, existingFileID string) (string, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Service wraps the Google Drive API.
type Service struct {
	srv      *gdrive.Service
	folderID string
}

var _ DriveAPI = (*Service)(nil)

// NewService creates a Drive service scoped to folderID.
func NewService(ctx context.Context, folderID string, opts ...option.ClientOption) (*Service, error) {
	srv, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Service{srv: srv, folderID: folderID}, nil
}

const listFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size)"

// ListFiles returns every non-trashed file in the folder.
func (s *Service) ListFiles(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	call := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", s.folderID)).
		Fields(listFields)
	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			out = append(out, fileInfo(f))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list drive folder %s: %w", s.folderID, err)
	}
	return out, nil
}

func fileInfo(f *gdrive.File) FileInfo {
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return FileInfo{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ModifiedAt: modified, Size: f.Size}
}

// UploadFile uploads localPath as fileName. A non-empty existingFileID
// replaces that file's content; otherwise a new file is created in the
// folder. The Drive file ID is returned.
func (s *Service) UploadFile(ctx context.Context, localPath, fileName, existingFileID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	var uploaded *gdrive.File
	if existingFileID != "" {
		uploaded, err = s.srv.Files.Update(existingFileID, &gdrive.File{Name: fileName}).Media(f).Context(ctx).Do()
	} else {
		meta := &gdrive.File{Name: fileName, Parents: []string{s.folderID}}
		uploaded, err = s.srv.Files.Create(meta).Media(f).Context(ctx).Do()
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	return uploaded.Id, nil
}

// DownloadFile opens the content of fileID. The caller closes it.
func (s *Service) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	return resp.Body, nil
}
