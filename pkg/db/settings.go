package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

// minPhoneDigits keeps very short numbers from suffix-matching everyone.
const minPhoneDigits = 7

// GetSettings returns owner's saved settings, or nil.
func (r *Repository) GetSettings(ctx context.Context, ownerID string) (*capture.Settings, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM capture_settings WHERE owner_id = ?`, ownerID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	var s capture.Settings
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.OwnerID = ownerID
	return &s, nil
}

// SaveSettings upserts s.
func (r *Repository) SaveSettings(ctx context.Context, s *capture.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	query := `INSERT INTO capture_settings (owner_id, data, sms_enabled, phone_digits, email_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner_id) DO UPDATE SET data = excluded.data, sms_enabled = excluded.sms_enabled,
			phone_digits = excluded.phone_digits, email_enabled = excluded.email_enabled, updated_at = CURRENT_TIMESTAMP`
	_, err = r.db.ExecContext(ctx, query, s.OwnerID, string(data), s.SMS.Enabled,
		capture.Digits(s.SMS.PhoneNumber), s.Email.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// OwnerByPhone finds the owner whose SMS number matches digits. Either side
// may carry a country prefix the other lacks. Whether SMS is enabled is left
// to the caller.
func (r *Repository) OwnerByPhone(ctx context.Context, digits string) (string, error) {
	if len(digits) < minPhoneDigits {
		return "", nil
	}
	query := `SELECT owner_id FROM capture_settings
		WHERE length(phone_digits) >= ?
		AND (phone_digits = ? OR ? LIKE '%' || phone_digits OR phone_digits LIKE '%' || ?)
		ORDER BY updated_at DESC LIMIT 1`
	var owner string
	err := r.db.QueryRowContext(ctx, query, minPhoneDigits, digits, digits, digits).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up phone owner: %w", err)
	}
	return owner, nil
}

// EmailOwners returns the settings of every owner with email capture on.
func (r *Repository) EmailOwners(ctx context.Context) ([]*capture.Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT owner_id, data FROM capture_settings WHERE email_enabled = 1 ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list email owners: %w", err)
	}
	defer rows.Close()

	var out []*capture.Settings
	for rows.Next() {
		var owner, data string
		if err := rows.Scan(&owner, &data); err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}
		var s capture.Settings
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("failed to decode settings of %s: %w", owner, err)
		}
		s.OwnerID = owner
		out = append(out, &s)
	}
	return out, rows.Err()
}
