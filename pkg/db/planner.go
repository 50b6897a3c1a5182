package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

// Events returns owner's events starting in [from, to), earliest first.
func (r *Repository) Events(ctx context.Context, ownerID string, from, to time.Time) ([]capture.Target, error) {
	query := `SELECT id, title, COALESCE(description, ''), start_time, end_time, all_day, COALESCE(location, ''),
		COALESCE(assigned_to, ''), priority, COALESCE(category, ''), COALESCE(source_item_id, '')
		FROM events WHERE owner_id = ? AND start_time >= ? AND start_time < ? ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, query, ownerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []capture.Target
	for rows.Next() {
		var (
			t          = capture.Target{Type: capture.TargetEvent, OwnerID: ownerID}
			start, end time.Time
		)
		err := rows.Scan(&t.ID, &t.Title, &t.Description, &start, &end, &t.AllDay, &t.Location,
			&t.AssignedTo, &t.Priority, &t.Category, &t.SourceItem)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		t.Start, t.End = &start, &end
		out = append(out, t)
	}
	return out, rows.Err()
}

// OpenTasks returns owner's incomplete tasks, most urgent first.
func (r *Repository) OpenTasks(ctx context.Context, ownerID string, limit int) ([]capture.Target, error) {
	query := `SELECT id, title, COALESCE(description, ''), due_date, COALESCE(assigned_to, ''), priority,
		COALESCE(category, ''), COALESCE(source_item_id, '')
		FROM tasks WHERE owner_id = ? AND completed = 0
		ORDER BY priority DESC, due_date IS NULL, due_date, created_at LIMIT ?`
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []capture.Target
	for rows.Next() {
		var (
			t   = capture.Target{Type: capture.TargetTask, OwnerID: ownerID}
			due sql.NullTime
		)
		err := rows.Scan(&t.ID, &t.Title, &t.Description, &due, &t.AssignedTo, &t.Priority, &t.Category, &t.SourceItem)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if due.Valid {
			d := due.Time
			t.DueDate = &d
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTask marks a task done.
func (r *Repository) CompleteTask(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tasks SET completed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}
