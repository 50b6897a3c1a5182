package db

import (
	"context"
	"fmt"

	"github.com/scottring/family-planner-sub006/pkg/family"
)

var _ family.Source = (*Repository)(nil)

// Roster returns owner's household members in their saved order.
func (r *Repository) Roster(ctx context.Context, ownerID string) (family.Roster, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, COALESCE(role, '') FROM family_members WHERE owner_id = ? ORDER BY position, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	defer rows.Close()

	var roster family.Roster
	for rows.Next() {
		var m family.Member
		if err := rows.Scan(&m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		roster = append(roster, m)
	}
	return roster, rows.Err()
}

// SaveRoster replaces owner's household members.
func (r *Repository) SaveRoster(ctx context.Context, ownerID string, roster family.Roster) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin roster update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM family_members WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}
	for i, m := range roster {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO family_members (owner_id, name, role, position) VALUES (?, ?, ?, ?)`,
			ownerID, m.Name, m.Role, i)
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster: %w", err)
	}
	return nil
}
