package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

// Repository handles data access
type Repository struct {
	db *DB
}

var _ capture.Store = (*Repository)(nil)

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const itemColumns = `id, owner_id, raw_content, input_channel, source_type, status, urgency_score, category,
	analysis, attachment_id, converted_type, converted_id, source_metadata, created_at, updated_at, processed_at`

// CreateItem inserts a new capture item.
func (r *Repository) CreateItem(ctx context.Context, item *capture.Item) error {
	meta, err := marshalNullable(item.SourceMetadata, len(item.SourceMetadata) > 0)
	if err != nil {
		return err
	}
	an, err := marshalNullable(item.Analysis, item.Analysis != nil)
	if err != nil {
		return err
	}
	query := `INSERT INTO capture_items (id, owner_id, raw_content, input_channel, source_type, status,
		urgency_score, category, analysis, source_metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, item.ID, item.OwnerID, item.RawContent, item.InputChannel, item.SourceType,
		item.Status, item.UrgencyScore, item.Category, an, meta, item.CreatedAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert capture item: %w", err)
	}
	return nil
}

// GetItem returns the item or nil if it does not exist.
func (r *Repository) GetItem(ctx context.Context, id string) (*capture.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM capture_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get capture item: %w", err)
	}
	return item, nil
}

// ListItems returns items matching f, newest first.
func (r *Repository) ListItems(ctx context.Context, f capture.Filter) ([]*capture.Item, error) {
	where := []string{"owner_id = ?"}
	args := []any{f.OwnerID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	} else {
		where = append(where, "status != ?")
		args = append(args, capture.StatusDeleted)
	}
	if f.Channel != "" {
		where = append(where, "input_channel = ?")
		args = append(args, f.Channel)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Contains != "" {
		where = append(where, "instr(lower(raw_content), lower(?)) > 0")
		args = append(args, f.Contains)
	}
	query := `SELECT ` + itemColumns + ` FROM capture_items WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture items: %w", err)
	}
	defer rows.Close()

	var items []*capture.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PendingItems returns pending items of every owner processed before
// olderThan (or never processed), oldest first.
func (r *Repository) PendingItems(ctx context.Context, olderThan time.Time, limit int) ([]*capture.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM capture_items
		WHERE status = ? AND (processed_at IS NULL OR processed_at < ?)
		ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, capture.StatusPending, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}
	defer rows.Close()

	var items []*capture.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveAnalysis stores the merged analysis and the fields derived from it.
func (r *Repository) SaveAnalysis(ctx context.Context, id string, a *analysis.Final, processedAt time.Time) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	query := `UPDATE capture_items SET analysis = ?, urgency_score = ?, category = ?, processed_at = ?, updated_at = ?
		WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(data), a.Urgency, a.Category, processedAt.UTC(), processedAt.UTC(), id); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// SetAttachment links an attachment to its item.
func (r *Repository) SetAttachment(ctx context.Context, itemID, attachmentID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE capture_items SET attachment_id = ? WHERE id = ?`, attachmentID, itemID)
	if err != nil {
		return fmt.Errorf("failed to link attachment: %w", err)
	}
	return nil
}

// CompareAndSetStatus moves id to `to` only when its status is one of from.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id string, from []capture.Status, to capture.Status) (bool, error) {
	return casStatus(ctx, r.db, id, from, to, time.Now().UTC())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func casStatus(ctx context.Context, ex execer, id string, from []capture.Status, to capture.Status, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := []any{to, now, id}
	for _, s := range from {
		args = append(args, s)
	}
	query := `UPDATE capture_items SET status = ?, updated_at = ? WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Convert flips the status, inserts the event or task and records the
// reference in one transaction.
func (r *Repository) Convert(ctx context.Context, id string, from []capture.Status, target *capture.Target) (*capture.ConversionRef, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin conversion: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ok, err := casStatus(ctx, tx, id, from, capture.StatusConverted, now)
	if err != nil || !ok {
		return nil, false, err
	}

	target.ID = ulid.Make().String()
	switch target.Type {
	case capture.TargetEvent:
		if target.Start == nil || target.End == nil {
			return nil, false, fmt.Errorf("event %s has no start or end", target.ID)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (id, owner_id, title, description, start_time, end_time, all_day,
			location, assigned_to, priority, category, source_item_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			target.ID, target.OwnerID, target.Title, target.Description, target.Start.UTC(), target.End.UTC(), target.AllDay,
			target.Location, target.AssignedTo, target.Priority, target.Category, id)
	case capture.TargetTask:
		_, err = tx.ExecContext(ctx, `INSERT INTO tasks (id, owner_id, title, description, due_date, assigned_to,
			priority, category, source_item_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			target.ID, target.OwnerID, target.Title, target.Description, nullTime(target.DueDate), target.AssignedTo,
			target.Priority, target.Category, id)
	default:
		return nil, false, fmt.Errorf("unknown conversion target %q", target.Type)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert %s: %w", target.Type, err)
	}

	ref := &capture.ConversionRef{Type: target.Type, ID: target.ID}
	if _, err := tx.ExecContext(ctx, `UPDATE capture_items SET converted_type = ?, converted_id = ? WHERE id = ?`,
		ref.Type, ref.ID, id); err != nil {
		return nil, false, fmt.Errorf("failed to record conversion: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit conversion: %w", err)
	}
	return ref, true, nil
}

// CreateAttachment inserts att.
func (r *Repository) CreateAttachment(ctx context.Context, att *capture.Attachment) error {
	data, err := marshalNullable(att.ExtractedData, att.ExtractedData != nil)
	if err != nil {
		return err
	}
	query := `INSERT INTO attachments (id, capture_item_id, file_path, file_type, file_size, processing_status,
		ocr_text, ocr_confidence, extracted_data, processing_error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, att.ID, att.CaptureItemID, att.FilePath, att.FileType, att.FileSize,
		att.ProcessingStatus, att.OCRText, att.OCRConfidence, data, att.ProcessingError, att.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// UpdateAttachment stores the OCR state of att.
func (r *Repository) UpdateAttachment(ctx context.Context, att *capture.Attachment) error {
	data, err := marshalNullable(att.ExtractedData, att.ExtractedData != nil)
	if err != nil {
		return err
	}
	query := `UPDATE attachments SET processing_status = ?, ocr_text = ?, ocr_confidence = ?, extracted_data = ?,
		processing_error = ? WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query, att.ProcessingStatus, att.OCRText, att.OCRConfidence, data,
		att.ProcessingError, att.ID)
	if err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}
	return nil
}

// GetAttachment returns the attachment or nil.
func (r *Repository) GetAttachment(ctx context.Context, id string) (*capture.Attachment, error) {
	query := `SELECT id, capture_item_id, file_path, file_type, file_size, processing_status, ocr_text,
		ocr_confidence, extracted_data, processing_error, created_at FROM attachments WHERE id = ?`
	var (
		att                          capture.Attachment
		fileType, text, data, errMsg sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&att.ID, &att.CaptureItemID, &att.FilePath, &fileType,
		&att.FileSize, &att.ProcessingStatus, &text, &att.OCRConfidence, &data, &errMsg, &att.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	att.FileType, att.OCRText, att.ProcessingError = fileType.String, text.String, errMsg.String
	if data.Valid {
		var fields ocr.Fields
		if err := json.Unmarshal([]byte(data.String), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data: %w", err)
		}
		att.ExtractedData = &fields
	}
	return &att, nil
}

// urgentScore is the lowest urgency counted as urgent in Stats.
const urgentScore = 4

// Stats counts owner's items. Deleted items only show up in ByStatus.
func (r *Repository) Stats(ctx context.Context, ownerID string) (*capture.Stats, error) {
	st := &capture.Stats{ByStatus: map[string]int{}, ByChannel: map[string]int{}, ByCategory: map[string]int{}}
	query := `SELECT status, input_channel, category, urgency_score, COUNT(*) FROM capture_items
		WHERE owner_id = ? GROUP BY status, input_channel, category, urgency_score`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, channel, category string
		var urgency, n int
		if err := rows.Scan(&status, &channel, &category, &urgency, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		st.ByStatus[status] += n
		if capture.Status(status) == capture.StatusDeleted {
			continue
		}
		st.Total += n
		st.ByChannel[channel] += n
		st.ByCategory[category] += n
		if capture.Status(status) == capture.StatusPending {
			st.Pending += n
			if urgency >= urgentScore {
				st.Urgent += n
			}
		}
	}
	return st, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*capture.Item, error) {
	var (
		item                              capture.Item
		an, attID, convType, convID, meta sql.NullString
		processedAt                       sql.NullTime
	)
	err := s.Scan(&item.ID, &item.OwnerID, &item.RawContent, &item.InputChannel, &item.SourceType, &item.Status,
		&item.UrgencyScore, &item.Category, &an, &attID, &convType, &convID, &meta,
		&item.CreatedAt, &item.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	item.AttachmentID = attID.String
	if convID.Valid && convID.String != "" {
		item.ConvertedTo = &capture.ConversionRef{Type: convType.String, ID: convID.String}
	}
	if processedAt.Valid {
		t := processedAt.Time
		item.ProcessedAt = &t
	}
	if an.Valid {
		var a analysis.Final
		if err := json.Unmarshal([]byte(an.String), &a); err != nil {
			return nil, fmt.Errorf("failed to decode analysis of %s: %w", item.ID, err)
		}
		item.Analysis = &a
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &item.SourceMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

func marshalNullable(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
