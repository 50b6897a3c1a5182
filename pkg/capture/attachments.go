package capture

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	capterr "github.com/scottring/family-planner-sub006/pkg/errors"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// OCR outcomes reported to the Recorder.
const (
	OCROK            = "ok"
	OCRLowConfidence = "low_confidence"
	OCRFailed        = "failed"
)

func (m *Manager) saveAttachment(ctx context.Context, item *Item, name string, data []byte) (*Attachment, error) {
	id := newID()
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".jpg"
	}
	dir, err := ownerDir(m.uploadDir, item.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, id+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	att := &Attachment{
		ID:               id,
		CaptureItemID:    item.ID,
		FilePath:         path,
		FileType:         http.DetectContentType(data),
		FileSize:         int64(len(data)),
		ProcessingStatus: AttachmentPending,
		CreatedAt:        m.now(),
	}
	if err := m.store.CreateAttachment(ctx, att); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}
	if err := m.store.SetAttachment(ctx, item.ID, att.ID); err != nil {
		return nil, fmt.Errorf("failed to link attachment: %w", err)
	}
	item.AttachmentID = att.ID
	return att, nil
}

// ownerDir is the owner's directory under uploadDir. It fails when ownerID
// would resolve outside uploadDir.
func ownerDir(uploadDir, ownerID string) (string, error) {
	dir := filepath.Join(uploadDir, ownerID)
	rel, err := filepath.Rel(uploadDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || strings.ContainsRune(rel, filepath.Separator) {
		return "", capterr.NewValidation("invalid ownerId for uploads: " + ownerID)
	}
	return dir, nil
}

// recognize drives att through processing to completed or failed. A failure
// is recorded on the attachment only; the capture stays usable.
func (m *Manager) recognize(ctx context.Context, att *Attachment, threshold float64) {
	att.ProcessingStatus = AttachmentProcessing
	att.ProcessingError = ""
	if err := m.store.UpdateAttachment(ctx, att); err != nil {
		m.logger.Warn("failed to mark attachment processing", "attachment", att.ID, "error", err)
	}

	start := m.now()
	out, err := m.ocr.Process(ctx, att.FilePath, threshold)
	if err != nil {
		failure := capterr.NewOCRFailure(att.ID, err)
		att.ProcessingStatus = AttachmentFailed
		att.ProcessingError = failure.Message
		m.recorder.ObserveOCR(OCRFailed, m.now().Sub(start))
		m.logger.Warn("ocr failed", "attachment", att.ID, "error", err)
	} else {
		fields := out.Fields
		att.ProcessingStatus = AttachmentCompleted
		att.OCRText = out.Text
		att.OCRConfidence = out.Confidence
		att.ExtractedData = &fields
		outcome := OCROK
		if !out.MeetsThreshold {
			outcome = OCRLowConfidence
		}
		m.recorder.ObserveOCR(outcome, m.now().Sub(start))
	}

	if err := m.store.UpdateAttachment(context.WithoutCancel(ctx), att); err != nil {
		m.logger.Error("failed to store ocr result", "attachment", att.ID, "error", err)
	}
}

// ExtractFields runs the OCR field extractor over text without storing
// anything.
func (m *Manager) ExtractFields(text string) ocr.Fields {
	return ocr.NewFieldExtractor(m.now()).Extract(text)
}
